package agent

import "errors"

var (
	// ErrProviderNotSet LLM Provider 未设置
	ErrProviderNotSet = errors.New("llm provider not set")

	// ErrInvokerNotSet 工具调用器未设置
	ErrInvokerNotSet = errors.New("tool invoker not set")

	// ErrSourceNotSet 提示模板来源未设置
	ErrSourceNotSet = errors.New("prompt source not set")

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errors.New("invalid agent config")

	// errAborted marks a model call cut short by the caller's context.
	errAborted = errors.New("run aborted")
)

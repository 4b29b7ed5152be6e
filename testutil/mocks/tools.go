// 工具函数桩，用于 tools.Invoker 与 agent 循环测试。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/agentloop/llm/tools"
)

// ErrToolBroken 失败工具返回的错误
var ErrToolBroken = errors.New("mock tool: broken")

// ToolCall 记录单次工具调用
type ToolCall struct {
	Input string
	At    time.Time
}

// RecordingTool 记录每次调用并返回固定结果
type RecordingTool struct {
	mu     sync.Mutex
	calls  []ToolCall
	result func(input string) (string, error)
}

// NewRecordingTool 创建返回 output 的工具
func NewRecordingTool(output string) *RecordingTool {
	return &RecordingTool{result: func(string) (string, error) { return output, nil }}
}

// NewEchoTool 创建回显输入的工具
func NewEchoTool() *RecordingTool {
	return &RecordingTool{result: func(in string) (string, error) { return in, nil }}
}

// NewFailingTool 创建总是失败的工具
func NewFailingTool() *RecordingTool {
	return &RecordingTool{result: func(string) (string, error) { return "", ErrToolBroken }}
}

// Func 返回 tools.Func
func (r *RecordingTool) Func() tools.Func {
	return func(ctx context.Context, input string) (string, error) {
		r.mu.Lock()
		r.calls = append(r.calls, ToolCall{Input: input, At: time.Now()})
		r.mu.Unlock()
		return r.result(input)
	}
}

// Calls 返回调用记录
func (r *RecordingTool) Calls() []ToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ToolCall(nil), r.calls...)
}

// SleepTool 等待 d 或 ctx 取消
func SleepTool(d time.Duration, output string) tools.Func {
	return func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d):
			return output, nil
		}
	}
}

// BlockingTool 忽略 ctx 一直阻塞到 release 关闭
func BlockingTool(release <-chan struct{}) tools.Func {
	return func(context.Context, string) (string, error) {
		<-release
		return "released", nil
	}
}

// PanicTool 调用时 panic
func PanicTool(msg string) tools.Func {
	return func(context.Context, string) (string, error) {
		panic(msg)
	}
}

// Package tokenizer 提供 Token 计数，用于在模型未返回 usage 时估算提示长度
// 并上报 llm 请求指标。优先使用 tiktoken 精确计数，失败时回退到 CJK 感知估算器。
package tokenizer

// ScriptedProvider 的 LLM 提供商测试模拟实现。
//
// 每次 Completion 按顺序返回脚本中的下一段生成文本，支持延迟与错误注入。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/agentloop/llm"
)

// ErrScriptExhausted 脚本已用完
var ErrScriptExhausted = errors.New("mock provider: script exhausted")

// Turn 是脚本中的一次模型调用
type Turn struct {
	Text  string        // 生成文本
	Err   error         // 非空时返回该错误
	Delay time.Duration // 返回前等待（遵循 ctx 取消）
	Empty bool          // 返回不含 choices 的响应
}

// ScriptedProvider 是 llm.Provider 的脚本化模拟实现
type ScriptedProvider struct {
	mu sync.Mutex

	turns    []Turn
	repeat   bool // 脚本用完后重复最后一段
	requests []*llm.ChatRequest

	promptTokens int
	name         string
}

// NewScriptedProvider 以生成文本序列创建 Provider
func NewScriptedProvider(texts ...string) *ScriptedProvider {
	p := &ScriptedProvider{name: "mock"}
	for _, t := range texts {
		p.turns = append(p.turns, Turn{Text: t})
	}
	return p
}

// WithTurns 追加脚本步骤
func (p *ScriptedProvider) WithTurns(turns ...Turn) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turns...)
	return p
}

// WithRepeatLast 脚本用完后一直返回最后一段
func (p *ScriptedProvider) WithRepeatLast() *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = true
	return p
}

// WithPromptTokens 设置响应中的 prompt token 数（0 表示不上报）
func (p *ScriptedProvider) WithPromptTokens(n int) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.promptTokens = n
	return p
}

// Name 返回 Provider 名称
func (p *ScriptedProvider) Name() string { return p.name }

// HealthCheck 执行健康检查
func (p *ScriptedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 返回脚本中的下一段
func (p *ScriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	idx := len(p.requests) - 1
	var turn Turn
	switch {
	case idx < len(p.turns):
		turn = p.turns[idx]
	case p.repeat && len(p.turns) > 0:
		turn = p.turns[len(p.turns)-1]
	default:
		p.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	tokens := p.promptTokens
	p.mu.Unlock()

	if turn.Delay > 0 {
		timer := time.NewTimer(turn.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if turn.Err != nil {
		return nil, turn.Err
	}

	resp := &llm.ChatResponse{
		ID:        "mock-response-id",
		Provider:  p.name,
		Model:     req.Model,
		Usage:     llm.ChatUsage{PromptTokens: tokens},
		CreatedAt: time.Now(),
	}
	if !turn.Empty {
		resp.Choices = []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: turn.Text},
		}}
	}
	return resp, nil
}

// Requests 返回所有收到的请求
func (p *ScriptedProvider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// CallCount 获取调用次数
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// LastPrompt 返回最后一次请求的提示文本
func (p *ScriptedProvider) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return ""
	}
	return llm.PromptText(p.requests[len(p.requests)-1])
}

package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数。
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称。
	Name() string
}

var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// RegisterTokenizer 为给定的模型名称注册分词器。
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// ForModel 返回模型对应的分词器：先查注册表（支持前缀匹配），
// 再对已知 OpenAI 模型使用 tiktoken，其余使用估算器。
// 返回值总是可用的，tiktoken 初始化失败时自动回退到估算器。
func ForModel(model string) Tokenizer {
	modelTokenizersMu.RLock()
	t, ok := modelTokenizers[model]
	if !ok {
		best := ""
		for prefix, candidate := range modelTokenizers {
			if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
				best, t, ok = prefix, candidate, true
			}
		}
	}
	modelTokenizersMu.RUnlock()
	if ok {
		return t
	}

	est := NewEstimatorTokenizer()
	if encoding, known := lookupEncoding(model); known {
		return &fallbackTokenizer{primary: NewTiktokenTokenizer(encoding), fallback: est}
	}
	return est
}

// fallbackTokenizer 在 primary 出错时使用 fallback 计数。
type fallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err == nil {
		return n, nil
	}
	return f.fallback.CountTokens(text)
}

func (f *fallbackTokenizer) Name() string {
	return f.primary.Name() + "|" + f.fallback.Name()
}

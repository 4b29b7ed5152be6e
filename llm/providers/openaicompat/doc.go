// Package openaicompat implements llm.Provider against any endpoint that
// speaks the OpenAI Chat Completions format (OpenAI, DeepSeek, Qwen, vLLM,
// Ollama's /v1 shim and so on).
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "openai",
//	    APIKey:       cfg.LLM.APIKey,
//	    BaseURL:      "https://api.openai.com",
//	    DefaultModel: "gpt-4o-mini",
//	}, logger)
package openaicompat

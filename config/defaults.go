// =============================================================================
// 📦 AgentLoop 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Agent:     DefaultAgentConfig(),
		LLM:       DefaultLLMConfig(),
		Tools:     DefaultToolsConfig(),
		Prompt:    DefaultPromptConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:          8080,
		MetricsPort:       9091,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		ShutdownTimeout:   15 * time.Second,
		RateLimitRPS:      10,
		RateLimitBurst:    20,
		MaxConcurrentRuns: 64,
	}
}

// DefaultAgentConfig 返回默认执行循环配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:               "gpt-4o-mini",
		MaxTokens:           1024,
		Temperature:         0,
		MaxIterations:       15,
		CallTimeout:         60 * time.Second,
		EarlyStoppingMethod: "generate",
		Memory: MemoryConfig{
			WindowSize:    5,
			MaxSessions:   1024,
			Store:         "memory",
			TTL:           24 * time.Hour,
			FoldToolSteps: true,
		},
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "openai",
		APIKey:   "",
		BaseURL:  "https://api.openai.com",
		Timeout:  2 * time.Minute,
	}
}

// DefaultToolsConfig 返回默认工具配置
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		Image: ImageToolConfig{
			Enabled:        true,
			Model:          "dall-e-3",
			Size:           "1024x1024",
			Timeout:        2 * time.Minute,
			MaxRetries:     2,
			FailureMessage: "Sorry, I could not generate that image right now. Please try again later.",
		},
	}
}

// DefaultPromptConfig 返回默认提示模板配置
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		Source:   "builtin",
		Name:     "react-chat",
		CacheTTL: time.Hour,
		Timeout:  10 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "",
		Host:            "localhost",
		Port:            5432,
		User:            "agentloop",
		Password:        "",
		Name:            "agentloop",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentloop",
		SampleRate:   0.1,
	}
}

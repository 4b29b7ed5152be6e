package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, AgentConfig{}, cfg.Agent)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, ToolsConfig{}, cfg.Tools)
	assert.NotEqual(t, PromptConfig{}, cfg.Prompt)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

func TestDefaultAgentConfig(t *testing.T) {
	cfg := DefaultAgentConfig()
	assert.Equal(t, 15, cfg.MaxIterations)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, "generate", cfg.EarlyStoppingMethod)
	assert.Equal(t, 1024, cfg.MaxTokens)

	assert.Equal(t, 5, cfg.Memory.WindowSize)
	assert.Equal(t, "memory", cfg.Memory.Store)
	assert.True(t, cfg.Memory.FoldToolSteps)
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 64, cfg.MaxConcurrentRuns)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.JWT.Enabled())
	assert.Greater(t, cfg.RateLimitRPS, 0.0)
}

func TestDefaultToolsConfig(t *testing.T) {
	cfg := DefaultToolsConfig()
	assert.True(t, cfg.Image.Enabled)
	assert.Equal(t, "dall-e-3", cfg.Image.Model)
	assert.NotEmpty(t, cfg.Image.FailureMessage)
}

func TestDefaultDatabaseConfig_DisabledByDefault(t *testing.T) {
	assert.Empty(t, DefaultDatabaseConfig().Driver)
	assert.False(t, DefaultRedisConfig().Enabled)
	assert.Equal(t, "builtin", DefaultPromptConfig().Source)
}

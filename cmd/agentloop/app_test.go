package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/config"
	"github.com/BaSui01/agentloop/testutil"
	"github.com/BaSui01/agentloop/testutil/fixtures"
	"github.com/BaSui01/agentloop/testutil/mocks"
	"github.com/BaSui01/agentloop/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// testConfig returns defaults with run history on a temp sqlite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "runs.db")
	cfg.Server.MaxConcurrentRuns = 2
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, provider *mocks.ScriptedProvider, opts ...AppOption) *App {
	t.Helper()
	app, err := NewApp(cfg, nil, append([]AppOption{WithProvider(provider.WithPromptTokens(10))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_RunRecordsHistory(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.FinalGeneration("Hello there."))
	app := newTestApp(t, testConfig(t), provider)

	ctx := types.WithSessionID(testutil.TestContext(t), "s1")
	mem, err := app.Sessions().Get(ctx, "s1")
	require.NoError(t, err)

	res, err := app.Run(ctx, mem, "hi")
	require.NoError(t, err)
	assert.Equal(t, agent.TerminationFinalAnswer, res.Termination)
	assert.Equal(t, "Hello there.", res.Output)

	require.NotNil(t, app.History())
	run, err := app.History().Get(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "s1", run.SessionID)
	assert.Equal(t, "hi", run.Input)

	assert.Len(t, app.ReadyChecks(), 4, "prompt, tools, model, database")
}

func TestNewApp_WithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = ""
	app := newTestApp(t, cfg, mocks.NewScriptedProvider(fixtures.FinalGeneration("ok")))

	assert.Nil(t, app.History())
	assert.Len(t, app.ReadyChecks(), 3)
}

func TestNewApp_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"redis memory without redis", func(c *config.Config) { c.Agent.Memory.Store = "redis" }},
		{"unknown prompt source", func(c *config.Config) { c.Prompt.Source = "ftp" }},
		{"bad builtin template", func(c *config.Config) { c.Prompt.Template = "no placeholders here" }},
		{"unknown database driver", func(c *config.Config) { c.Database.Driver = "oracle" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := NewApp(cfg, nil, WithProvider(mocks.NewScriptedProvider()))
			assert.Error(t, err)
		})
	}
}

func TestNewApp_RedisMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Agent.Memory.Store = "redis"

	app := newTestApp(t, cfg, mocks.NewScriptedProvider(fixtures.FinalGeneration("remembered")))
	ctx := testutil.TestContext(t)
	mem, err := app.Sessions().Get(ctx, "redis-session")
	require.NoError(t, err)

	_, err = app.Run(ctx, mem, "remember me")
	require.NoError(t, err)

	assert.True(t, mr.Exists(memoryKeyPrefix+"redis-session"))
	assert.Len(t, app.ReadyChecks(), 5)
}

func TestApp_ApplyConfigSwapsExecutor(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg, mocks.NewScriptedProvider(fixtures.FinalGeneration("ok")))
	before := app.Executor()

	same := *cfg
	same.Server.RateLimitRPS = 99
	app.ApplyConfig(cfg, &same)
	assert.Same(t, before, app.Executor(), "non-agent changes keep the executor")

	next := *cfg
	next.Agent.MaxIterations = 3
	app.ApplyConfig(cfg, &next)
	assert.NotSame(t, before, app.Executor())
}

func TestApp_ApplyConfigWarnsOnMemoryChange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = ""
	core, logs := observer.New(zap.WarnLevel)
	app, err := NewApp(cfg, zap.New(core), WithProvider(mocks.NewScriptedProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	restartWarnings := func() []string {
		var sections []string
		for _, e := range logs.TakeAll() {
			if e.Message == "config section changed, restart required" {
				sections = append(sections, e.ContextMap()["section"].(string))
			}
		}
		return sections
	}

	folded := *cfg
	folded.Agent.Memory.FoldToolSteps = !cfg.Agent.Memory.FoldToolSteps
	app.ApplyConfig(cfg, &folded)
	assert.Empty(t, restartWarnings(), "fold_tool_steps applies on reload")

	tests := []struct {
		name   string
		mutate func(*config.MemoryConfig)
	}{
		{name: "window size", mutate: func(m *config.MemoryConfig) { m.WindowSize++ }},
		{name: "max sessions", mutate: func(m *config.MemoryConfig) { m.MaxSessions++ }},
		{name: "store", mutate: func(m *config.MemoryConfig) { m.Store = "redis" }},
		{name: "ttl", mutate: func(m *config.MemoryConfig) { m.TTL += time.Hour }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := *cfg
			tt.mutate(&next.Agent.Memory)
			app.ApplyConfig(cfg, &next)
			assert.Equal(t, []string{"agent.memory"}, restartWarnings())
		})
	}
}

func TestApp_QueuedRunAbortsWhenCallerGivesUp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = ""
	cfg.Server.MaxConcurrentRuns = 1
	provider := mocks.NewScriptedProvider().WithTurns(
		mocks.Turn{Text: fixtures.FinalGeneration("slow"), Delay: 500 * time.Millisecond},
		mocks.Turn{Text: fixtures.FinalGeneration("never")},
	)
	app := newTestApp(t, cfg, provider)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = app.Run(context.Background(), nil, "first")
	}()
	require.True(t, testutil.WaitFor(func() bool { return provider.CallCount() == 1 }, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := app.Run(ctx, nil, "second")
	require.NoError(t, err)
	assert.Equal(t, agent.TerminationAborted, res.Termination)
	<-done
}

func TestExecutorConfig(t *testing.T) {
	ac := config.DefaultAgentConfig()
	ac.MaxIterations = 7
	ac.EarlyStoppingMethod = "force"

	cfg := executorConfig(ac)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, "force", cfg.EarlyStoppingMethod)
	assert.Equal(t, ac.Model, cfg.Model)
}

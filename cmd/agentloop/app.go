package main

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/agent/memory"
	"github.com/BaSui01/agentloop/agent/prompt"
	"github.com/BaSui01/agentloop/api/handlers"
	"github.com/BaSui01/agentloop/config"
	"github.com/BaSui01/agentloop/internal/cache"
	"github.com/BaSui01/agentloop/internal/database"
	"github.com/BaSui01/agentloop/internal/metrics"
	"github.com/BaSui01/agentloop/internal/pool"
	"github.com/BaSui01/agentloop/internal/store"
	"github.com/BaSui01/agentloop/llm"
	"github.com/BaSui01/agentloop/llm/image"
	"github.com/BaSui01/agentloop/llm/providers/openaicompat"
	"github.com/BaSui01/agentloop/llm/retry"
	"github.com/BaSui01/agentloop/llm/tools"
	"go.uber.org/zap"
)

const (
	memoryKeyPrefix = "agentloop:memory:"
	promptKeyPrefix = "agentloop:prompt:"
)

// =============================================================================
// 🧩 App：把配置装配成可运行的执行器
// =============================================================================

// App owns every long-lived dependency of a run: provider, tools, prompt
// source, sessions, history and the current executor. The executor is
// swapped atomically when the agent configuration is reloaded.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	collector *metrics.Collector
	stepHook  func(agent.Step)
	provider  llm.Provider

	cache    *cache.Manager
	runs     *store.RunStore
	sessions *memory.Sessions
	registry *tools.Registry
	invoker  *tools.Invoker
	source   prompt.Source
	runPool  *pool.GoroutinePool

	exec atomic.Pointer[agent.Executor]
}

// AppOption customises NewApp.
type AppOption func(*App)

// WithCollector records run, LLM and tool metrics.
func WithCollector(c *metrics.Collector) AppOption {
	return func(a *App) { a.collector = c }
}

// WithStepHook prints or inspects every step (CLI --verbose).
func WithStepHook(fn func(agent.Step)) AppOption {
	return func(a *App) { a.stepHook = fn }
}

// WithProvider overrides the model provider built from llm config.
func WithProvider(p llm.Provider) AppOption {
	return func(a *App) { a.provider = p }
}

// NewApp wires cfg. On error everything opened so far is closed.
func NewApp(cfg *config.Config, logger *zap.Logger, opts ...AppOption) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.Redis.Enabled {
		a.cache, err = cache.NewManager(cache.Config{
			Addr:                cfg.Redis.Addr,
			Password:            cfg.Redis.Password,
			DB:                  cfg.Redis.DB,
			DefaultTTL:          cfg.Agent.Memory.TTL,
			MaxRetries:          3,
			PoolSize:            cfg.Redis.PoolSize,
			MinIdleConns:        cfg.Redis.MinIdleConns,
			TLSEnabled:          cfg.Redis.TLSEnabled,
			HealthCheckInterval: 30 * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	if cfg.Database.Driver != "" {
		pm, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if a.runs, err = store.New(pm, logger); err != nil {
			_ = pm.Close()
			return nil, err
		}
	}

	var memStore memory.Store = memory.NewInMemoryStore()
	if cfg.Agent.Memory.Store == "redis" {
		if a.cache == nil {
			return nil, errors.New("memory.store redis requires redis.enabled")
		}
		memStore = memory.NewRedisStore(a.cache, memoryKeyPrefix, cfg.Agent.Memory.TTL, logger)
	}
	a.sessions, err = memory.NewSessions(cfg.Agent.Memory.WindowSize, cfg.Agent.Memory.MaxSessions, memStore, logger)
	if err != nil {
		return nil, err
	}

	a.source, err = a.promptSource()
	if err != nil {
		return nil, err
	}

	if a.provider == nil {
		a.provider = openaicompat.New(openaicompat.Config{
			ProviderName: cfg.LLM.Provider,
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.Agent.Model,
			Timeout:      cfg.LLM.Timeout,
		}, logger)
	}

	a.registry = tools.NewRegistry(logger)
	if cfg.Tools.Image.Enabled {
		if err := a.registry.Register(a.imageTool()); err != nil {
			return nil, err
		}
	}
	var invOpts []tools.InvokerOption
	if a.collector != nil {
		invOpts = append(invOpts, tools.WithRecorder(a.collector))
	}
	a.invoker = tools.NewInvoker(a.registry, logger, invOpts...)

	exec, err := a.buildExecutor(cfg.Agent)
	if err != nil {
		return nil, err
	}
	a.exec.Store(exec)

	if n := cfg.Server.MaxConcurrentRuns; n > 0 {
		a.runPool = pool.New(pool.Config{
			MaxWorkers: n,
			QueueSize:  4 * n,
			PanicHandler: func(r any) {
				logger.Error("run panicked", zap.Any("panic", r))
			},
		})
	}

	logger.Info("agent ready",
		zap.String("model", cfg.Agent.Model),
		zap.String("provider", a.provider.Name()),
		zap.Strings("tools", a.registry.Names()),
		zap.String("memory_store", cfg.Agent.Memory.Store),
		zap.Bool("run_history", a.runs != nil),
	)
	return a, nil
}

func (a *App) promptSource() (prompt.Source, error) {
	pc := a.cfg.Prompt
	var src prompt.Source
	switch pc.Source {
	case "", "builtin":
		if pc.Template != "" {
			if err := prompt.Validate(pc.Template); err != nil {
				return nil, err
			}
		}
		// 内置模板无需缓存
		return prompt.StaticSource(pc.Template), nil
	case "hub":
		src = prompt.NewHubSource(pc.HubURL, pc.Name, pc.Timeout)
	default:
		return nil, fmt.Errorf("unknown prompt source %q", pc.Source)
	}

	var remote prompt.TemplateCache
	if a.cache != nil {
		remote = a.cache
	}
	return prompt.NewCachedSource(src, remote, promptKeyPrefix+pc.Name, pc.CacheTTL, a.logger), nil
}

func (a *App) imageTool() tools.ToolSpec {
	ic := a.cfg.Tools.Image
	apiKey, baseURL := ic.APIKey, ic.BaseURL
	if apiKey == "" {
		apiKey = a.cfg.LLM.APIKey
	}
	if baseURL == "" {
		baseURL = a.cfg.LLM.BaseURL
	}
	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = ic.MaxRetries

	opts := tools.ImageToolOptions{
		Model:          ic.Model,
		Size:           ic.Size,
		Timeout:        ic.Timeout,
		FailureMessage: ic.FailureMessage,
		Retry:          policy,
		Logger:         a.logger,
	}
	if ic.RateLimitPerMinute > 0 {
		opts.RateLimit = &tools.RateLimitConfig{MaxCalls: ic.RateLimitPerMinute, Window: time.Minute}
	}
	provider := image.NewOpenAIProvider(image.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   ic.Model,
		Size:    ic.Size,
		Timeout: ic.Timeout,
	})
	return tools.NewImageTool(provider, opts)
}

// executorConfig maps the agent section onto agent.Config.
func executorConfig(ac config.AgentConfig) agent.Config {
	cfg := agent.DefaultConfig()
	cfg.Model = ac.Model
	cfg.MaxTokens = ac.MaxTokens
	cfg.Temperature = ac.Temperature
	cfg.MaxIterations = ac.MaxIterations
	cfg.CallTimeout = ac.CallTimeout
	cfg.EarlyStoppingMethod = ac.EarlyStoppingMethod
	return cfg
}

func (a *App) buildExecutor(ac config.AgentConfig) (*agent.Executor, error) {
	var opts []agent.Option
	if a.collector != nil {
		opts = append(opts, agent.WithMetrics(a.collector))
	}
	if a.runs != nil {
		opts = append(opts, agent.WithRunRecorder(a.runs))
	}
	if a.stepHook != nil {
		opts = append(opts, agent.WithStepHook(a.stepHook))
	}
	if ac.Memory.FoldToolSteps {
		opts = append(opts, agent.WithMemorySteps(agent.FoldToolSteps))
	}
	return agent.NewExecutor(a.provider, a.invoker, a.source, executorConfig(ac), a.logger, opts...)
}

// Run implements handlers.Runner. With a run pool, runs beyond the limit
// queue; a caller that gives up while queued gets an aborted result.
func (a *App) Run(ctx context.Context, mem *memory.Window, input string) (*agent.Result, error) {
	exec := a.exec.Load()
	if a.runPool == nil {
		return exec.Run(ctx, mem, input)
	}

	var res *agent.Result
	err := a.runPool.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = exec.Run(ctx, mem, input)
		return err
	})
	if err != nil && ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return &agent.Result{Termination: agent.TerminationAborted}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyConfig is the reload callback. Only the agent section is applied
// live; other changes are logged and need a restart.
func (a *App) ApplyConfig(old, next *config.Config) {
	for name, pair := range map[string][2]any{
		"llm":      {old.LLM, next.LLM},
		"tools":    {old.Tools, next.Tools},
		"prompt":   {old.Prompt, next.Prompt},
		"redis":    {old.Redis, next.Redis},
		"database": {old.Database, next.Database},
		"server":   {old.Server, next.Server},
	} {
		if !reflect.DeepEqual(pair[0], pair[1]) {
			a.logger.Warn("config section changed, restart required", zap.String("section", name))
		}
	}
	// 会话窗口在启动时创建，只有 fold_tool_steps 可以热更新
	oldMem, nextMem := old.Agent.Memory, next.Agent.Memory
	oldMem.FoldToolSteps, nextMem.FoldToolSteps = false, false
	if oldMem != nextMem {
		a.logger.Warn("config section changed, restart required", zap.String("section", "agent.memory"))
	}
	if reflect.DeepEqual(old.Agent, next.Agent) {
		return
	}
	exec, err := a.buildExecutor(next.Agent)
	if err != nil {
		a.logger.Error("rebuild executor failed, keeping previous", zap.Error(err))
		return
	}
	a.exec.Store(exec)
	a.logger.Info("executor reloaded",
		zap.String("model", next.Agent.Model),
		zap.Int("max_iterations", next.Agent.MaxIterations),
		zap.String("early_stopping_method", next.Agent.EarlyStoppingMethod),
	)
}

// Executor returns the executor currently in effect.
func (a *App) Executor() *agent.Executor { return a.exec.Load() }

// Sessions returns the session registry.
func (a *App) Sessions() *memory.Sessions { return a.sessions }

// History returns run history, or nil without a database.
func (a *App) History() handlers.RunHistory {
	if a.runs == nil {
		return nil
	}
	return a.runs
}

// ReadyChecks returns the prompt, tool and model checks, plus pings for
// the backing stores that are configured.
func (a *App) ReadyChecks() []handlers.HealthCheck {
	var required []string
	if a.cfg.Tools.Image.Enabled {
		required = append(required, tools.ImageToolName)
	}
	checks := []handlers.HealthCheck{
		handlers.NewPromptCheck(a.source),
		handlers.NewToolsCheck(a.registry, required...),
		handlers.NewProviderCheck(a.provider),
	}
	if a.cache != nil {
		checks = append(checks, handlers.NewPingCheck("redis", a.cache.Ping))
	}
	if a.runs != nil {
		checks = append(checks, handlers.NewPingCheck("database", a.runs.Ping))
	}
	return checks
}

// Close releases the pool, history database and Redis client.
func (a *App) Close() error {
	var errs []error
	if a.runPool != nil {
		a.runPool.Close()
	}
	if a.runs != nil {
		errs = append(errs, a.runs.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	return errors.Join(errs...)
}

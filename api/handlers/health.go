package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentloop/agent/prompt"
	"github.com/BaSui01/agentloop/llm"
	"github.com/BaSui01/agentloop/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// checkTimeout bounds each readiness check; checks run concurrently.
const checkTimeout = 3 * time.Second

// HealthHandler serves liveness, readiness and version. Readiness asks
// every registered check whether a run could succeed right now.
type HealthHandler struct {
	logger  *zap.Logger
	started time.Time

	mu     sync.RWMutex
	checks []HealthCheck
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // healthy, unhealthy
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // pass, fail
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		started: time.Now(),
	}
}

// RegisterCheck adds a readiness check. Names should be unique.
func (h *HealthHandler) RegisterCheck(checks ...HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, checks...)
}

// HandleHealth answers liveness checks (/health, /healthz): the process is
// up, nothing downstream is contacted.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

// HandleHealthz is the Kubernetes-style alias of HandleHealth.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.HandleHealth(w, r)
}

// HandleReady runs all checks concurrently and answers 503 if any fails.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = h.run(r.Context(), check)
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	code := http.StatusOK
	for i, check := range checks {
		status.Checks[check.Name()] = results[i]
		if results[i].Status != "pass" {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, code, status)
}

func (h *HealthHandler) run(ctx context.Context, check HealthCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)
	if err == nil {
		return CheckResult{Status: "pass", Latency: latency.String()}
	}

	h.logger.Warn("readiness check failed",
		zap.String("check", check.Name()),
		zap.Error(err),
		zap.Duration("latency", latency))
	msg := err.Error()
	// 上游返回的原始内容只进日志
	if e, ok := types.AsError(err); ok {
		msg = e.Message
	}
	return CheckResult{Status: "fail", Message: msg, Latency: latency.String()}
}

// HandleVersion 处理 /version 请求
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// =============================================================================
// 🔧 内置检查
// =============================================================================

// PingCheck wraps a ping function (Redis, run history database).
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck 创建 ping 健康检查
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (c *PingCheck) Name() string { return c.name }

func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }

// PromptCheck loads the agent's prompt template and validates it, so a hub
// outage or a bad template shows up before the first run fails.
type PromptCheck struct {
	source prompt.Source
}

// NewPromptCheck 创建提示模板检查
func NewPromptCheck(source prompt.Source) *PromptCheck {
	return &PromptCheck{source: source}
}

func (c *PromptCheck) Name() string { return "prompt" }

func (c *PromptCheck) Check(ctx context.Context) error {
	tmpl, err := c.source.Template(ctx)
	if err != nil {
		return types.NewError(types.ErrServiceUnavailable, "prompt template unavailable").WithCause(err)
	}
	if err := prompt.Validate(tmpl); err != nil {
		return types.NewError(types.ErrInvalidTemplate, "prompt template is invalid").WithCause(err)
	}
	return nil
}

// ToolNames is the part of tools.Registry readiness needs.
type ToolNames interface {
	Has(name string) bool
}

// ToolsCheck fails when a tool the agent was configured with is not
// registered.
type ToolsCheck struct {
	registry ToolNames
	required []string
}

// NewToolsCheck 创建工具注册检查
func NewToolsCheck(registry ToolNames, required ...string) *ToolsCheck {
	return &ToolsCheck{registry: registry, required: required}
}

func (c *ToolsCheck) Name() string { return "tools" }

func (c *ToolsCheck) Check(context.Context) error {
	var missing []string
	for _, name := range c.required {
		if !c.registry.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return types.NewError(types.ErrToolNotFound,
			fmt.Sprintf("tools not registered: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// ProviderCheck calls the model provider's health endpoint.
type ProviderCheck struct {
	provider llm.Provider
}

// NewProviderCheck 创建模型 Provider 检查
func NewProviderCheck(provider llm.Provider) *ProviderCheck {
	return &ProviderCheck{provider: provider}
}

func (c *ProviderCheck) Name() string { return "model" }

func (c *ProviderCheck) Check(ctx context.Context) error {
	st, err := c.provider.HealthCheck(ctx)
	if err == nil && st != nil && !st.Healthy {
		err = fmt.Errorf("%s reported unhealthy", c.provider.Name())
	}
	if err != nil {
		return types.NewError(types.ErrProviderUnavailable, "model provider unavailable").
			WithCause(err).
			WithProvider(c.provider.Name())
	}
	return nil
}

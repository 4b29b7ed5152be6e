package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/agentloop/agent/prompt"
	"github.com/BaSui01/agentloop/llm"
	"github.com/BaSui01/agentloop/llm/tools"
	"github.com/BaSui01/agentloop/testutil/mocks"
	"github.com/BaSui01/agentloop/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

type stubCheck struct {
	name string
	err  error
}

func (c *stubCheck) Name() string { return c.name }
func (c *stubCheck) Check(ctx context.Context) error { return c.err }

type failingSource struct{ err error }

func (s failingSource) Template(context.Context) (string, error) { return "", s.err }

type downProvider struct {
	healthy bool
	err     error
}

func (p *downProvider) Name() string { return "down" }

func (p *downProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (p *downProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.HealthStatus{Healthy: p.healthy}, nil
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	return status
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_Liveness(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	// 存活检查不跑 readiness 检查
	handler.RegisterCheck(&stubCheck{name: "redis", err: errors.New("down")})

	for _, h := range []http.HandlerFunc{handler.HandleHealth, handler.HandleHealthz} {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		status := decodeHealth(t, w)
		assert.Equal(t, "healthy", status.Status)
		assert.NotEmpty(t, status.Uptime)
		assert.Empty(t, status.Checks)
	}
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantCode   int
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "all pass",
			checks: []HealthCheck{
				&stubCheck{name: "redis"},
				&stubCheck{name: "database"},
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "one fails",
			checks: []HealthCheck{
				&stubCheck{name: "redis"},
				&stubCheck{name: "database", err: errors.New("connection refused")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantFailed: []string{"database"},
		},
		{
			name: "all fail",
			checks: []HealthCheck{
				&stubCheck{name: "redis", err: errors.New("timeout")},
				&stubCheck{name: "database", err: errors.New("connection refused")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantFailed: []string{"redis", "database"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(zap.NewNop())
			handler.RegisterCheck(tt.checks...)

			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			status := decodeHealth(t, w)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))
			for _, name := range tt.wantFailed {
				assert.Equal(t, "fail", status.Checks[name].Status, name)
				assert.NotEmpty(t, status.Checks[name].Message, name)
			}
		})
	}
}

func TestHealthHandler_HandleReady_HidesErrorCause(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	handler := NewHealthHandler(zap.New(core))
	handler.RegisterCheck(&stubCheck{
		name: "model",
		err: types.NewError(types.ErrProviderUnavailable, "model provider unavailable").
			WithCause(errors.New("401: Incorrect API key provided: sk-abc123")),
	})

	w := httptest.NewRecorder()
	handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-abc123")
	status := decodeHealth(t, w)
	assert.Equal(t, "model provider unavailable", status.Checks["model"].Message)

	entries := logs.FilterMessage("readiness check failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "sk-abc123")
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleVersion("1.0.0", "2026-01-01T00:00:00Z", "abc123")(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", data["version"])
	assert.Equal(t, "abc123", data["git_commit"])
}

// =============================================================================
// 🧪 内置检查
// =============================================================================

func TestPingCheck(t *testing.T) {
	check := NewPingCheck("redis", func(ctx context.Context) error { return nil })
	assert.Equal(t, "redis", check.Name())
	assert.NoError(t, check.Check(context.Background()))

	check = NewPingCheck("redis", func(ctx context.Context) error { return errors.New("dial tcp: refused") })
	assert.EqualError(t, check.Check(context.Background()), "dial tcp: refused")
}

func TestPromptCheck(t *testing.T) {
	tests := []struct {
		name     string
		source   prompt.Source
		wantCode types.ErrorCode
	}{
		{name: "default template", source: prompt.StaticSource("")},
		{name: "hub unreachable", source: failingSource{err: errors.New("dial tcp: refused")}, wantCode: types.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewPromptCheck(tt.source)
			assert.Equal(t, "prompt", check.Name())

			err := check.Check(context.Background())
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
		})
	}
}

func TestToolsCheck(t *testing.T) {
	registry := tools.NewRegistry(zap.NewNop())

	check := NewToolsCheck(registry)
	assert.Equal(t, "tools", check.Name())
	assert.NoError(t, check.Check(context.Background()), "nothing required")

	check = NewToolsCheck(registry, tools.ImageToolName)
	err := check.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrToolNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), tools.ImageToolName)

	require.NoError(t, registry.Register(tools.ToolSpec{
		Name: tools.ImageToolName,
		Func: func(ctx context.Context, input string) (string, error) { return "https://img/1.png", nil },
	}))
	assert.NoError(t, check.Check(context.Background()))
}

func TestProviderCheck(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		wantErr  bool
	}{
		{name: "healthy", provider: mocks.NewScriptedProvider()},
		{name: "reports unhealthy", provider: &downProvider{}, wantErr: true},
		{name: "health call fails", provider: &downProvider{err: errors.New("503")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewProviderCheck(tt.provider)
			assert.Equal(t, "model", check.Name())

			err := check.Check(context.Background())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			typed, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, types.ErrProviderUnavailable, typed.Code)
			assert.Equal(t, "down", typed.Provider)
		})
	}
}

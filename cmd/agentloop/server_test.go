package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/agentloop/internal/metrics"
	"github.com/BaSui01/agentloop/internal/store"
	"github.com/BaSui01/agentloop/testutil"
	"github.com/BaSui01/agentloop/testutil/fixtures"
	"github.com/BaSui01/agentloop/testutil/mocks"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, body string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	return env
}

func TestServerHandler_RunAndHistory(t *testing.T) {
	cfg := testConfig(t)
	provider := mocks.NewScriptedProvider(fixtures.FinalGeneration("Hi!")).WithPromptTokens(10)
	srv, err := newServer(cfg, nil, zap.NewNop(), nil, metrics.NewCollector("srvtest", nil), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.app.Close() })

	h, err := srv.Handler(testutil.TestContext(t))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader(`{"session_id":"web-1","input":"hello"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	var run struct {
		RunID       string `json:"run_id"`
		Output      string `json:"output"`
		Termination string `json:"termination"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w.Body.String()).Data, &run))
	assert.Equal(t, "Hi!", run.Output)
	assert.Equal(t, "final_answer", run.Termination)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs?session_id=web-1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var runs []store.Run
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w.Body.String()).Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+run.RunID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, path := range []string{"/health", "/healthz", "/ready", "/version"} {
		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestServerHandler_JWTProtectsAPI(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = ""
	cfg.Server.JWT.Secret = "s3cret"
	srv, err := newServer(cfg, nil, nil, nil, metrics.NewCollector("srvjwt", nil),
		WithProvider(mocks.NewScriptedProvider(fixtures.FinalGeneration("ok"))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.app.Close() })

	h, err := srv.Handler(testutil.TestContext(t))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader(`{"input":"hello"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, w.Body.String()).Error.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// 无数据库时历史端点不可用
	r = httptest.NewRequest(http.MethodGet, "/api/v1/runs?session_id=x", nil)
	r.Header.Set("Authorization", "Bearer "+signHS256(t, "s3cret", jwt.MapClaims{"sub": "u1"}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

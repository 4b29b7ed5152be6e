package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/agent/memory"
	"github.com/BaSui01/agentloop/agent/prompt"
	"github.com/BaSui01/agentloop/config"
	"github.com/BaSui01/agentloop/internal/database"
	"github.com/BaSui01/agentloop/internal/store"
	"github.com/BaSui01/agentloop/llm/tools"
	"github.com/BaSui01/agentloop/testutil/fixtures"
	"github.com/BaSui01/agentloop/testutil/mocks"
	"github.com/BaSui01/agentloop/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type runFixture struct {
	handler  *RunHandler
	provider *mocks.ScriptedProvider
	sessions *memory.Sessions
	history  *store.RunStore
	mux      *http.ServeMux
}

func newRunFixture(t *testing.T, provider *mocks.ScriptedProvider, withHistory bool) *runFixture {
	t.Helper()
	reg := tools.NewRegistry(nil)
	require.NoError(t, reg.Register(tools.ToolSpec{
		Name:           tools.ImageToolName,
		Description:    "Generates an image and returns its URL.",
		Func:           mocks.NewRecordingTool("https://img.example/out.png").Func(),
		FailureMessage: tools.ImageToolFailureMessage,
	}))

	sessions, err := memory.NewSessions(5, 16, memory.NewInMemoryStore(), nil)
	require.NoError(t, err)

	var (
		opts    []agent.Option
		history RunHistory
		rs      *store.RunStore
	)
	if withHistory {
		pool, err := database.Open(config.DatabaseConfig{
			Driver: "sqlite",
			Name:   filepath.Join(t.TempDir(), "runs.db"),
		}, nil)
		require.NoError(t, err)
		rs, err = store.New(pool, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = rs.Close() })
		opts = append(opts, agent.WithRunRecorder(rs))
		history = rs
	}

	exec, err := agent.NewExecutor(provider, tools.NewInvoker(reg, nil), prompt.StaticSource(""),
		agent.DefaultConfig(), nil, opts...)
	require.NoError(t, err)

	h := NewRunHandler(exec, sessions, history, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/run", h.HandleRun)
	mux.HandleFunc("GET /api/v1/runs", h.HandleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.HandleGetRun)
	return &runFixture{handler: h, provider: provider, sessions: sessions, history: rs, mux: mux}
}

func postRun(t *testing.T, mux http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/run", bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func decodeRun(t *testing.T, w *httptest.ResponseRecorder) RunResponse {
	t.Helper()
	var resp struct {
		Success bool        `json:"success"`
		Data    RunResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestRunHandler_HandleRun(t *testing.T) {
	provider := mocks.NewScriptedProvider(
		fixtures.ActionGeneration(tools.ImageToolName, "a red fox"),
		fixtures.FinalGeneration("Here is your fox: https://img.example/out.png"),
	)
	f := newRunFixture(t, provider, true)

	w := postRun(t, f.mux, `{"session_id":"s-1","input":"draw a red fox"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decodeRun(t, w)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "s-1", res.SessionID)
	assert.Equal(t, agent.TerminationFinalAnswer, res.Termination)
	assert.Equal(t, "Here is your fox: https://img.example/out.png", res.Output)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, tools.ImageToolName, res.Steps[0].Tool)
	assert.Equal(t, "https://img.example/out.png", res.Steps[0].Observation)

	mem, ok := f.sessions.Peek("s-1")
	require.True(t, ok)
	assert.Equal(t, 1, mem.Len())

	run, err := f.history.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "s-1", run.SessionID)
}

func TestRunHandler_HandleRun_AssignsSessionID(t *testing.T) {
	f := newRunFixture(t, mocks.NewScriptedProvider(fixtures.FinalGeneration("hello")), false)

	w := postRun(t, f.mux, `{"input":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeRun(t, w)
	assert.NotEmpty(t, res.SessionID)
	assert.Empty(t, res.Steps)
	assert.NotNil(t, res.Steps)
}

func TestRunHandler_HandleRun_BadRequests(t *testing.T) {
	f := newRunFixture(t, mocks.NewScriptedProvider(), false)

	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
	}{
		{"empty input", `{"input":"   "}`, "application/json", http.StatusBadRequest},
		{"unknown field", `{"input":"x","model":"y"}`, "application/json", http.StatusBadRequest},
		{"wrong content type", `{"input":"x"}`, "text/plain", http.StatusUnsupportedMediaType},
		{"session id too long", `{"input":"x","session_id":"` + string(bytes.Repeat([]byte("a"), 200)) + `"}`, "application/json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/run", bytes.NewBufferString(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			f.handler.HandleRun(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
	assert.Zero(t, f.provider.CallCount())
}

func TestRunHandler_HandleRun_MethodNotAllowed(t *testing.T) {
	f := newRunFixture(t, mocks.NewScriptedProvider(), false)
	w := httptest.NewRecorder()
	f.handler.HandleRun(w, httptest.NewRequest(http.MethodGet, "/api/v1/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRunHandler_HandleRun_UpstreamError(t *testing.T) {
	provider := mocks.NewScriptedProvider().WithTurns(mocks.Turn{
		Err: types.NewError(types.ErrUpstreamError, "bad gateway").WithHTTPStatus(http.StatusBadGateway),
	})
	f := newRunFixture(t, provider, false)

	w := postRun(t, f.mux, `{"session_id":"s","input":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, string(types.ErrUpstreamError), resp.Error.Code)
}

func TestRunHandler_HandleRun_ClientGone(t *testing.T) {
	provider := mocks.NewScriptedProvider().WithTurns(mocks.Turn{Text: fixtures.FinalGeneration("late"), Delay: time.Second})
	f := newRunFixture(t, provider, false)

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/run", bytes.NewBufferString(`{"session_id":"s","input":"hi"}`)).WithContext(ctx)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	time.AfterFunc(20*time.Millisecond, cancel)
	f.handler.HandleRun(w, r)

	assert.Equal(t, 499, w.Code)
	mem, ok := f.sessions.Peek("s")
	require.True(t, ok)
	assert.Zero(t, mem.Len(), "aborted runs do not touch memory")
}

func TestRunHandler_History(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.FinalGeneration("one"), fixtures.FinalGeneration("two"))
	f := newRunFixture(t, provider, true)

	first := decodeRun(t, postRun(t, f.mux, `{"session_id":"h","input":"1"}`))
	decodeRun(t, postRun(t, f.mux, `{"session_id":"h","input":"2"}`))

	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs?session_id=h&limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []store.Run `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list.Data, 2)

	w = httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+first.RunID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var one struct {
		Data store.Run `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&one))
	assert.Equal(t, "one", one.Data.Output)

	w = httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs?session_id=h&limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunHandler_HistoryDisabled(t *testing.T) {
	f := newRunFixture(t, mocks.NewScriptedProvider(), false)

	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs?session_id=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

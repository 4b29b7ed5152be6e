package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/agent/memory"
	"github.com/BaSui01/agentloop/internal/store"
	"github.com/BaSui01/agentloop/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSessionIDLen = 128

// =============================================================================
// 🤖 Run Handler
// =============================================================================

// Runner executes one task against a memory window.
type Runner interface {
	Run(ctx context.Context, mem *memory.Window, input string) (*agent.Result, error)
}

// SessionSource resolves a session ID to its memory window.
type SessionSource interface {
	Get(ctx context.Context, sessionID string) (*memory.Window, error)
}

// RunHistory reads persisted runs.
type RunHistory interface {
	Get(ctx context.Context, runID string) (*store.Run, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]store.Run, error)
}

// RunHandler serves the agent run endpoints.
type RunHandler struct {
	runner   Runner
	sessions SessionSource
	history  RunHistory
	logger   *zap.Logger
}

// RunRequest POST /api/v1/run 请求体
type RunRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Input     string `json:"input"`
}

// RunResponse POST /api/v1/run 响应
type RunResponse struct {
	RunID       string             `json:"run_id"`
	SessionID   string             `json:"session_id"`
	Output      string             `json:"output"`
	Termination agent.Termination  `json:"termination"`
	Iterations  int                `json:"iterations"`
	Steps       []agent.StepRecord `json:"steps"`
	Duration    string             `json:"duration"`
}

// NewRunHandler 创建 RunHandler。history 为 nil 时运行历史端点返回 503。
func NewRunHandler(runner Runner, sessions SessionSource, history RunHistory, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		runner:   runner,
		sessions: sessions,
		history:  history,
		logger:   logger.With(zap.String("handler", "run")),
	}
}

// HandleRun 处理 POST /api/v1/run
// @Summary 执行一次 Agent 任务
// @Tags 运行
// @Accept json
// @Produce json
// @Param request body RunRequest true "任务"
// @Success 200 {object} Response{data=RunResponse}
// @Failure 400 {object} Response
// @Failure 502 {object} Response
// @Router /api/v1/run [post]
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req RunRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "input is required", h.logger)
		return
	}
	if len(req.SessionID) > maxSessionIDLen {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "session_id is too long", h.logger)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx := types.WithSessionID(r.Context(), req.SessionID)
	mem, err := h.sessions.Get(ctx, req.SessionID)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "load session").WithCause(err), h.logger)
		return
	}

	res, err := h.runner.Run(ctx, mem, req.Input)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if res.Termination == agent.TerminationAborted {
		h.logger.Info("run aborted by client",
			zap.String("run_id", res.RunID),
			zap.String("session_id", req.SessionID),
		)
		WriteErrorMessage(w, 499, types.ErrAborted, "run aborted", nil)
		return
	}

	steps := make([]agent.StepRecord, 0, len(res.Steps))
	for _, s := range res.Steps {
		steps = append(steps, s.Record())
	}
	WriteSuccess(w, RunResponse{
		RunID:       res.RunID,
		SessionID:   req.SessionID,
		Output:      res.Output,
		Termination: res.Termination,
		Iterations:  res.Iterations,
		Steps:       steps,
		Duration:    res.Duration.String(),
	})
}

// HandleListRuns 处理 GET /api/v1/runs?session_id=&limit=
// @Summary 查询会话的运行历史
// @Tags 运行
// @Produce json
// @Param session_id query string true "会话 ID"
// @Param limit query int false "条数上限"
// @Success 200 {object} Response{data=[]store.Run}
// @Failure 503 {object} Response "未配置数据库"
// @Router /api/v1/runs [get]
func (h *RunHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "session_id is required", h.logger)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}

	runs, err := h.history.ListBySession(r.Context(), sessionID, limit)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "list runs").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, runs)
}

// HandleGetRun 处理 GET /api/v1/runs/{id}
// @Summary 查询单次运行
// @Tags 运行
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} Response{data=store.Run}
// @Failure 404 {object} Response
// @Router /api/v1/runs/{id} [get]
func (h *RunHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "run id is required", h.logger)
		return
	}

	run, err := h.history.Get(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrRunNotFound, "run not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "get run").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, run)
}

func (h *RunHandler) historyEnabled(w http.ResponseWriter) bool {
	if h.history == nil {
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "run history is disabled", h.logger)
		return false
	}
	return true
}

package types

import "context"

type contextKey string

const (
	keyTraceID   contextKey = "trace_id"
	keyUserID    contextKey = "user_id"
	keyRunID     contextKey = "run_id"
	keySessionID contextKey = "session_id"
)

func value(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithTraceID carries the request trace ID down to provider calls.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID 读取 trace ID
func TraceID(ctx context.Context) (string, bool) { return value(ctx, keyTraceID) }

// WithUserID records the authenticated caller (JWT user_id or sub).
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID 读取调用方用户 ID
func UserID(ctx context.Context) (string, bool) { return value(ctx, keyUserID) }

// WithRunID tags everything a single agent run does, tool calls included.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID 读取当前 run ID
func RunID(ctx context.Context) (string, bool) { return value(ctx, keyRunID) }

// WithSessionID selects the conversation memory window for a run.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, keySessionID, sessionID)
}

// SessionID 读取会话 ID
func SessionID(ctx context.Context) (string, bool) { return value(ctx, keySessionID) }

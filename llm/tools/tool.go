package tools

import (
	"context"
	"time"
)

// Func is a tool callable. It receives the raw action input and returns the
// observation text. Implementations must honour ctx cancellation and be
// safe for concurrent use.
type Func func(ctx context.Context, input string) (string, error)

// DefaultTimeout bounds a tool call when the spec sets none.
const DefaultTimeout = 30 * time.Second

// DefaultFailureMessage is used when a spec sets no FailureMessage.
const DefaultFailureMessage = "The tool failed to produce a result. Try a different approach."

// RateLimitConfig limits how often one tool may be called across all runs.
type RateLimitConfig struct {
	MaxCalls int           // Calls allowed per window
	Window   time.Duration // Time window
	Burst    int           // Bucket size, defaults to MaxCalls
}

// ToolSpec describes one callable tool.
type ToolSpec struct {
	Name           string
	Description    string
	Func           Func
	FailureMessage string           // Model-safe text used for every failure
	Timeout        time.Duration    // Per-call bound (default 30s)
	RateLimit      *RateLimitConfig // Optional
}

// Observation is the result of one tool invocation as seen by the model.
type Observation struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// Invocation status labels reported to a Recorder.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusPanic       = "panic"
	StatusNotFound    = "not_found"
	StatusRateLimited = "rate_limited"
	StatusCancelled   = "cancelled"
)

// Recorder receives one record per invocation.
type Recorder interface {
	RecordToolInvocation(tool, status string, duration time.Duration)
}

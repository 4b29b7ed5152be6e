package agent

import (
	"context"
	"time"

	"github.com/BaSui01/agentloop/agent/memory"
	"go.opentelemetry.io/otel/trace"
)

// RunRecord is what a RunRecorder receives when a run terminates.
type RunRecord struct {
	RunID       string
	SessionID   string
	Input       string
	Output      string
	Termination Termination
	Iterations  int
	Steps       []StepRecord
	StartedAt   time.Time
	Duration    time.Duration
}

// RunRecorder persists terminated runs. Failures are logged, never fatal.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// Metrics receives loop measurements.
type Metrics interface {
	ObserveRun(termination string, iterations int, duration time.Duration)
	ObserveLLMCall(model, status string, promptTokens int, duration time.Duration)
	ObserveParseError()
}

// Option configures an Executor.
type Option func(*Executor)

// WithStepHook is called after every step is appended, on the run's goroutine.
func WithStepHook(fn func(Step)) Option {
	return func(e *Executor) { e.stepHook = fn }
}

// WithMemorySteps selects steps to store with the committed exchange.
func WithMemorySteps(fn func([]Step) []memory.ToolTrace) Option {
	return func(e *Executor) { e.memorySteps = fn }
}

// WithRunRecorder persists every terminated run.
func WithRunRecorder(rec RunRecorder) Option {
	return func(e *Executor) { e.recorder = rec }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer overrides the tracer (default: global provider).
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

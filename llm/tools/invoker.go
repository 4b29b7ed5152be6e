package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/BaSui01/agentloop/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Invoker dispatches one action to its tool.
type Invoker struct {
	registry *Registry
	recorder Recorder
	tracer   trace.Tracer
	logger   *zap.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRecorder sets the invocation recorder.
func WithRecorder(rec Recorder) InvokerOption {
	return func(i *Invoker) { i.recorder = rec }
}

// WithTracer overrides the tracer (default: global provider).
func WithTracer(t trace.Tracer) InvokerOption {
	return func(i *Invoker) { i.tracer = t }
}

// NewInvoker seals registry and returns an invoker over it.
func NewInvoker(registry *Registry, logger *zap.Logger, opts ...InvokerOption) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry.Seal()
	inv := &Invoker{
		registry: registry,
		tracer:   otel.Tracer("github.com/BaSui01/agentloop/llm/tools"),
		logger:   logger.With(zap.String("component", "tool_invoker")),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Registry returns the underlying registry.
func (i *Invoker) Registry() *Registry { return i.registry }

// UnknownToolMessage is the observation for a name that is not registered.
func UnknownToolMessage(name string, known []string) string {
	return fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(known, ", "))
}

type callResult struct {
	out string
	err error
}

// errToolPanic marks a recovered panic.
var errToolPanic = errors.New("tool panicked")

// Invoke runs the named tool with input. It never returns an error; see
// the package doc for how failures map to observations.
func (i *Invoker) Invoke(ctx context.Context, name, input string) Observation {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "agent.tool_call",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	logger := i.logger
	if runID, ok := types.RunID(ctx); ok {
		logger = logger.With(zap.String("run_id", runID))
	}

	e, ok := i.registry.lookup(name)
	if !ok {
		logger.Warn("unknown tool requested", zap.String("name", name))
		i.record(name, StatusNotFound, start)
		span.SetStatus(codes.Error, "unknown tool")
		return Observation{Success: false, Text: UnknownToolMessage(name, i.registry.Names())}
	}
	spec := e.spec

	callCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	if e.limiter != nil {
		if err := e.limiter.Wait(callCtx); err != nil {
			status := StatusRateLimited
			if ctx.Err() != nil {
				status = StatusCancelled
			}
			logger.Warn("tool rate limit wait failed", zap.String("name", name), zap.Error(err))
			i.record(name, status, start)
			span.SetStatus(codes.Error, status)
			return Observation{Success: false, Text: spec.FailureMessage}
		}
	}

	// Buffered so the goroutine can exit even when nobody receives after a timeout.
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("tool panicked",
					zap.String("name", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				done <- callResult{err: errToolPanic}
			}
		}()
		out, err := spec.Func(callCtx, input)
		done <- callResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			status := StatusError
			if errors.Is(res.err, errToolPanic) {
				status = StatusPanic
			}
			logger.Warn("tool execution failed",
				zap.String("name", name),
				zap.Error(res.err),
				zap.Duration("duration", time.Since(start)))
			i.record(name, status, start)
			span.RecordError(res.err)
			span.SetStatus(codes.Error, status)
			return Observation{Success: false, Text: spec.FailureMessage}
		}
		logger.Debug("tool executed",
			zap.String("name", name),
			zap.Duration("duration", time.Since(start)))
		i.record(name, StatusSuccess, start)
		return Observation{Success: true, Text: res.out}

	case <-callCtx.Done():
		status := StatusTimeout
		if ctx.Err() != nil {
			status = StatusCancelled
		}
		logger.Warn("tool execution did not finish",
			zap.String("name", name),
			zap.String("status", status),
			zap.Duration("timeout", spec.Timeout))
		i.record(name, status, start)
		span.SetStatus(codes.Error, status)
		return Observation{Success: false, Text: spec.FailureMessage}
	}
}

func (i *Invoker) record(name, status string, start time.Time) {
	if i.recorder != nil {
		i.recorder.RecordToolInvocation(name, status, time.Since(start))
	}
}

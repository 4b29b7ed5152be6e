package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentloop/agent/memory"
	"github.com/BaSui01/agentloop/agent/prompt"
	"github.com/BaSui01/agentloop/llm"
	"github.com/BaSui01/agentloop/llm/tokenizer"
	"github.com/BaSui01/agentloop/llm/tools"
	"github.com/BaSui01/agentloop/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Early stopping methods.
const (
	EarlyStopGenerate = "generate"
	EarlyStopForce    = "force"
)

// ForcedStopOutput is the output of a run stopped with EarlyStopForce.
const ForcedStopOutput = "Agent stopped due to iteration limit or time limit."

// Config holds the loop parameters.
type Config struct {
	Model               string
	MaxTokens           int
	Temperature         float32
	MaxIterations       int           // default 15
	CallTimeout         time.Duration // per model call, default 60s
	EarlyStoppingMethod string        // generate (default) or force
	StopSequences       []string      // default ["\nObservation:"]
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:           1024,
		MaxIterations:       15,
		CallTimeout:         60 * time.Second,
		EarlyStoppingMethod: EarlyStopGenerate,
		StopSequences:       []string{StopSequence},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.EarlyStoppingMethod == "" {
		c.EarlyStoppingMethod = def.EarlyStoppingMethod
	}
	if len(c.StopSequences) == 0 {
		c.StopSequences = def.StopSequences
	}
	return c
}

// Result is the outcome of a run.
type Result struct {
	RunID       string
	Output      string
	Steps       []Step
	Termination Termination
	Iterations  int
	Duration    time.Duration
}

// Executor drives the loop. It is safe for concurrent Runs.
type Executor struct {
	provider llm.Provider
	invoker  *tools.Invoker
	source   prompt.Source
	tools    []prompt.Tool
	cfg      Config
	logger   *zap.Logger

	stepHook    func(Step)
	memorySteps func([]Step) []memory.ToolTrace
	recorder    RunRecorder
	metrics     Metrics
	tracer      trace.Tracer
	tokens      tokenizer.Tokenizer
}

// NewExecutor wires a loop. The tool list rendered into prompts is taken
// from the invoker's registry once, here.
func NewExecutor(provider llm.Provider, invoker *tools.Invoker, source prompt.Source, cfg Config, logger *zap.Logger, opts ...Option) (*Executor, error) {
	if provider == nil {
		return nil, ErrProviderNotSet
	}
	if invoker == nil {
		return nil, ErrInvokerNotSet
	}
	if source == nil {
		return nil, ErrSourceNotSet
	}
	cfg = cfg.withDefaults()
	if cfg.EarlyStoppingMethod != EarlyStopGenerate && cfg.EarlyStoppingMethod != EarlyStopForce {
		return nil, fmt.Errorf("%w: early stopping method %q", ErrConfigInvalid, cfg.EarlyStoppingMethod)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	specs := invoker.Registry().Specs()
	promptTools := make([]prompt.Tool, 0, len(specs))
	for _, s := range specs {
		promptTools = append(promptTools, prompt.Tool{Name: s.Name, Description: s.Description})
	}

	e := &Executor{
		provider: provider,
		invoker:  invoker,
		source:   source,
		tools:    promptTools,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "agent_executor")),
		tracer:   otel.Tracer("github.com/BaSui01/agentloop/agent"),
		tokens:   tokenizer.ForModel(cfg.Model),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// run is the per-Run state. It never escapes Run.
type run struct {
	id         string
	input      string
	history    string
	composer   *prompt.Composer
	pad        Scratchpad
	sm         machine
	iterations int
	started    time.Time
	logger     *zap.Logger
}

// Run executes one task against mem (which may be nil for a stateless run).
// See the package doc for the meaning of the returned values.
func (e *Executor) Run(ctx context.Context, mem *memory.Window, input string) (*Result, error) {
	r := &run{
		id:      uuid.NewString(),
		input:   input,
		sm:      machine{state: StateRunning},
		started: time.Now(),
	}
	ctx = types.WithRunID(ctx, r.id)
	r.logger = e.logger.With(zap.String("run_id", r.id))
	if sid, ok := types.SessionID(ctx); ok {
		r.logger = r.logger.With(zap.String("session_id", sid))
	}
	if uid, ok := types.UserID(ctx); ok {
		r.logger = r.logger.With(zap.String("user_id", uid))
	}

	ctx, span := e.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.Int("agent.max_iterations", e.cfg.MaxIterations),
	))
	defer span.End()

	if ctx.Err() != nil {
		return e.finish(ctx, r, mem, TerminationAborted, ""), nil
	}

	tmpl, err := e.source.Template(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return e.finish(ctx, r, mem, TerminationAborted, ""), nil
		}
		span.SetStatus(codes.Error, "prompt template")
		return nil, fmt.Errorf("load prompt template: %w", err)
	}
	if r.composer, err = prompt.NewComposer(tmpl, e.tools); err != nil {
		return nil, err
	}
	if mem != nil {
		r.history = memory.RenderHistory(mem.Snapshot())
	}

	res, err := e.loop(ctx, r, mem)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(types.GetErrorCode(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("run.termination", string(res.Termination)),
		attribute.Int("run.iterations", res.Iterations),
	)
	return res, nil
}

func (e *Executor) loop(ctx context.Context, r *run, mem *memory.Window) (*Result, error) {
	for r.iterations < e.cfg.MaxIterations {
		if ctx.Err() != nil {
			return e.abort(ctx, r, mem)
		}

		raw, err := e.callModel(ctx, r, r.composer.Compose(r.vars()))
		if errors.Is(err, errAborted) {
			return e.abort(ctx, r, mem)
		}
		if err != nil {
			return nil, err
		}

		switch out := Parse(raw).(type) {
		case FinalAnswer:
			if err := r.sm.to(StateDone); err != nil {
				return nil, e.internal(err)
			}
			return e.finish(ctx, r, mem, TerminationFinalAnswer, out.Text), nil

		case ParseError:
			if e.metrics != nil {
				e.metrics.ObserveParseError()
			}
			r.logger.Debug("unparseable generation", zap.String("reason", out.Reason))
			if err := r.sm.to(StateRunning); err != nil {
				return nil, e.internal(err)
			}
			e.appendStep(r, Step{Raw: raw, Outcome: out, Observation: tools.Observation{Success: false, Text: out.Reason}})

		case Action:
			if err := r.sm.to(StateAwaitingToolResult); err != nil {
				return nil, e.internal(err)
			}
			if ctx.Err() != nil {
				return e.abort(ctx, r, mem)
			}
			obs := e.invoker.Invoke(ctx, out.Tool, out.ToolInput)
			if ctx.Err() != nil {
				return e.abort(ctx, r, mem)
			}
			if err := r.sm.to(StateRunning); err != nil {
				return nil, e.internal(err)
			}
			e.appendStep(r, Step{Raw: raw, Outcome: out, Observation: obs})
		}
		r.iterations++
	}

	return e.forceAnswer(ctx, r, mem)
}

// forceAnswer handles an exhausted budget.
func (e *Executor) forceAnswer(ctx context.Context, r *run, mem *memory.Window) (*Result, error) {
	if err := r.sm.to(StateForcingAnswer); err != nil {
		return nil, e.internal(err)
	}
	r.logger.Info("iteration budget exhausted",
		zap.Int("max_iterations", e.cfg.MaxIterations),
		zap.String("early_stopping_method", e.cfg.EarlyStoppingMethod))

	output := ForcedStopOutput
	if e.cfg.EarlyStoppingMethod == EarlyStopGenerate {
		if ctx.Err() != nil {
			return e.abort(ctx, r, mem)
		}
		raw, err := e.callModel(ctx, r, r.composer.ComposeFinal(r.vars()))
		if errors.Is(err, errAborted) {
			return e.abort(ctx, r, mem)
		}
		if err != nil {
			return nil, err
		}
		if fa, ok := Parse(raw).(FinalAnswer); ok {
			output = fa.Text
		} else {
			output = strings.TrimSpace(StripStopFragment(raw))
		}
	}

	if err := r.sm.to(StateDone); err != nil {
		return nil, e.internal(err)
	}
	return e.finish(ctx, r, mem, TerminationMaxIterationsExceeded, output), nil
}

func (e *Executor) abort(ctx context.Context, r *run, mem *memory.Window) (*Result, error) {
	r.logger.Info("run aborted", zap.Error(ctx.Err()), zap.Int("iterations", r.iterations))
	r.sm.state = StateDone
	return e.finish(ctx, r, mem, TerminationAborted, ""), nil
}

func (e *Executor) internal(err error) error {
	return types.NewError(types.ErrInternalError, "agent state machine violated").WithCause(err)
}

func (r *run) vars() prompt.Vars {
	return prompt.Vars{Input: r.input, ChatHistory: r.history, Scratchpad: r.pad.Render()}
}

func (e *Executor) appendStep(r *run, step Step) {
	step = r.pad.Append(step)
	if ce := r.logger.Check(zap.DebugLevel, "step"); ce != nil {
		rec := step.Record()
		ce.Write(
			zap.Int("index", rec.Index),
			zap.String("kind", string(rec.Kind)),
			zap.String("tool", rec.Tool),
			zap.Bool("success", rec.Success),
		)
	}
	if e.stepHook != nil {
		e.stepHook(step)
	}
}

// finish builds the result, commits memory for non-aborted runs and
// notifies the recorder and metrics.
func (e *Executor) finish(ctx context.Context, r *run, mem *memory.Window, term Termination, output string) *Result {
	res := &Result{
		RunID:       r.id,
		Output:      output,
		Steps:       r.pad.Steps(),
		Termination: term,
		Iterations:  r.iterations,
		Duration:    time.Since(r.started),
	}

	if term != TerminationAborted && mem != nil {
		ex := memory.Exchange{Input: r.input, Output: output}
		if e.memorySteps != nil {
			ex.Tools = e.memorySteps(res.Steps)
		}
		if err := mem.Append(ctx, ex); err != nil {
			r.logger.Warn("memory persistence failed", zap.Error(err))
		}
	}

	if e.recorder != nil {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		sid, _ := types.SessionID(ctx)
		err := e.recorder.RecordRun(recCtx, RunRecord{
			RunID:       r.id,
			SessionID:   sid,
			Input:       r.input,
			Output:      output,
			Termination: term,
			Iterations:  r.iterations,
			Steps:       Records(res.Steps),
			StartedAt:   r.started,
			Duration:    res.Duration,
		})
		cancel()
		if err != nil {
			r.logger.Warn("record run failed", zap.Error(err))
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveRun(string(term), r.iterations, res.Duration)
	}
	r.logger.Info("run finished",
		zap.String("termination", string(term)),
		zap.Int("iterations", r.iterations),
		zap.Duration("duration", res.Duration))
	return res
}

// callModel performs one bounded completion. It returns errAborted when the
// caller's context ended, or a *types.Error for upstream failures.
func (e *Executor) callModel(ctx context.Context, r *run, promptText string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "agent.llm_call", trace.WithAttributes(
		attribute.String("llm.model", e.cfg.Model),
		attribute.Int("agent.iteration", r.iterations),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	req := &llm.ChatRequest{
		Model:       e.cfg.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: promptText}},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Stop:        e.cfg.StopSequences,
	}
	if tid, ok := types.TraceID(ctx); ok {
		req.TraceID = tid
	}

	start := time.Now()
	resp, err := e.provider.Completion(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			e.observeLLM("aborted", 0, elapsed)
			return "", errAborted
		}
		upstream := e.upstreamError(callCtx, err)
		e.observeLLM(strings.ToLower(string(upstream.Code)), 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(upstream.Code))
		r.logger.Error("model call failed", zap.Error(err), zap.Duration("latency", elapsed))
		return "", upstream
	}

	text, err := llm.CompletionText(resp)
	if err != nil {
		e.observeLLM("upstream_error", 0, elapsed)
		span.SetStatus(codes.Error, "empty completion")
		return "", types.NewError(types.ErrUpstreamError, "model returned no choices").
			WithProvider(e.provider.Name()).WithCause(err)
	}

	promptTokens := resp.Usage.PromptTokens
	if promptTokens == 0 {
		promptTokens, _ = e.tokens.CountTokens(promptText)
	}
	e.observeLLM("success", promptTokens, elapsed)
	span.SetAttributes(attribute.Int("llm.prompt_tokens", promptTokens))
	return text, nil
}

func (e *Executor) upstreamError(callCtx context.Context, err error) *types.Error {
	var llmErr *llm.Error
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
	if errors.As(err, &llmErr) && llmErr.Code == llm.ErrUpstreamTimeout {
		timedOut = true
	}

	if timedOut {
		return types.NewError(types.ErrUpstreamTimeout,
			fmt.Sprintf("model call exceeded %s", e.cfg.CallTimeout)).
			WithProvider(e.provider.Name()).
			WithRetryable(true).
			WithCause(err)
	}

	out := types.NewError(types.ErrUpstreamError, "model call failed").
		WithProvider(e.provider.Name()).
		WithCause(err)
	if llmErr != nil {
		out = out.WithRetryable(llmErr.Retryable).WithHTTPStatus(llmErr.HTTPStatus)
	}
	return out
}

func (e *Executor) observeLLM(status string, promptTokens int, d time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveLLMCall(e.cfg.Model, status, promptTokens, d)
	}
}

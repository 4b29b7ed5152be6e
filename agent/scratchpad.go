package agent

import (
	"strings"

	"github.com/BaSui01/agentloop/agent/memory"
	"github.com/BaSui01/agentloop/llm/tools"
)

// Step is one completed iteration: the generation, its parsed outcome and
// the observation fed back to the model.
type Step struct {
	Index       int
	Raw         string
	Outcome     Outcome
	Observation tools.Observation
}

// StepRecord is the serialisable form of a Step.
type StepRecord struct {
	Index       int         `json:"index"`
	Kind        OutcomeKind `json:"kind"`
	Tool        string      `json:"tool,omitempty"`
	ToolInput   string      `json:"tool_input,omitempty"`
	Log         string      `json:"log"`
	Observation string      `json:"observation"`
	Success     bool        `json:"success"`
}

// Record converts the step for logs, APIs and run history.
func (s Step) Record() StepRecord {
	rec := StepRecord{
		Index:       s.Index,
		Log:         s.Outcome.RawLog(),
		Kind:        s.Outcome.Kind(),
		Observation: s.Observation.Text,
		Success:     s.Observation.Success,
	}
	if a, ok := s.Outcome.(Action); ok {
		rec.Tool = a.Tool
		rec.ToolInput = a.ToolInput
	}
	return rec
}

// Records converts steps in order.
func Records(steps []Step) []StepRecord {
	out := make([]StepRecord, len(steps))
	for i, s := range steps {
		out[i] = s.Record()
	}
	return out
}

// Scratchpad is the ordered step log of one run.
type Scratchpad struct {
	steps []Step
}

// Append adds a step and assigns its index.
func (s *Scratchpad) Append(step Step) Step {
	step.Index = len(s.steps)
	s.steps = append(s.steps, step)
	return step
}

// Len returns the number of steps.
func (s *Scratchpad) Len() int { return len(s.steps) }

// Steps returns a copy of the steps.
func (s *Scratchpad) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// Render formats the steps for the {agent_scratchpad} slot. Each step is
// its log, then "Observation: <text>", then an open "Thought: " so the
// model continues the reasoning.
func (s *Scratchpad) Render() string {
	var b strings.Builder
	for _, step := range s.steps {
		b.WriteString(step.Outcome.RawLog())
		b.WriteString("\nObservation: ")
		b.WriteString(step.Observation.Text)
		b.WriteString("\nThought: ")
	}
	return b.String()
}

// FoldToolSteps keeps the successful tool calls of a run for memory.
func FoldToolSteps(steps []Step) []memory.ToolTrace {
	var out []memory.ToolTrace
	for _, s := range steps {
		a, ok := s.Outcome.(Action)
		if !ok || !s.Observation.Success {
			continue
		}
		out = append(out, memory.ToolTrace{Tool: a.Tool, Input: a.ToolInput, Observation: s.Observation.Text})
	}
	return out
}

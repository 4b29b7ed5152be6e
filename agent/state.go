package agent

import "fmt"

// State is a position in the run state machine.
type State string

const (
	StateRunning            State = "running"              // composing and calling the model
	StateAwaitingToolResult State = "awaiting_tool_result" // one tool call in flight
	StateForcingAnswer      State = "forcing_answer"       // budget spent, one last generation
	StateDone               State = "done"
)

// Termination says how a run ended.
type Termination string

const (
	TerminationFinalAnswer           Termination = "final_answer"
	TerminationMaxIterationsExceeded Termination = "max_iterations_exceeded"
	TerminationAborted               Termination = "aborted"
)

// validTransitions 定义合法的状态转换
var validTransitions = map[State][]State{
	StateRunning:            {StateRunning, StateAwaitingToolResult, StateForcingAnswer, StateDone},
	StateAwaitingToolResult: {StateRunning, StateDone},
	StateForcingAnswer:      {StateDone},
	StateDone:               {},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// machine tracks the state of one run.
type machine struct {
	state State
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return ErrInvalidTransition{From: m.state, To: next}
	}
	m.state = next
	return nil
}

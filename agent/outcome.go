package agent

// Outcome is the parsed form of one model generation: exactly one of
// Action, FinalAnswer or ParseError.
type Outcome interface {
	// Kind names the variant.
	Kind() OutcomeKind
	// RawLog is the generation text the outcome was parsed from.
	RawLog() string
}

// OutcomeKind labels an Outcome variant.
type OutcomeKind string

const (
	KindAction      OutcomeKind = "action"
	KindFinalAnswer OutcomeKind = "final_answer"
	KindParseError  OutcomeKind = "parse_error"
)

// Action asks the loop to call one tool.
type Action struct {
	Tool      string
	ToolInput string
	Log       string
}

func (Action) Kind() OutcomeKind { return KindAction }
func (a Action) RawLog() string  { return a.Log }

// FinalAnswer ends the run.
type FinalAnswer struct {
	Text string
	Log  string
}

func (FinalAnswer) Kind() OutcomeKind { return KindFinalAnswer }
func (f FinalAnswer) RawLog() string  { return f.Log }

// ParseError is a generation that matched neither form. Reason is the
// diagnostic fed back to the model as the observation.
type ParseError struct {
	Reason string
	Log    string
}

func (ParseError) Kind() OutcomeKind { return KindParseError }
func (p ParseError) RawLog() string  { return p.Log }

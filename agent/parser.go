package agent

import (
	"regexp"
	"strings"
)

const (
	finalAnswerMarker = "Final Answer:"
	observationMarker = "Observation:"

	// StopSequence is sent with every model call so the model yields after
	// "Action Input:" instead of inventing an observation.
	StopSequence = "\n" + observationMarker
)

// Parse diagnostics.
const (
	MissingActionAfterThought     = "Invalid Format: Missing 'Action:' after 'Thought:'"
	MissingActionInputAfterAction = "Invalid Format: Missing 'Action Input:' after 'Action:'"
)

var (
	actionRegexp      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyRegexp  = regexp.MustCompile(`Action\s*\d*\s*:`)
	actionInputRegexp = regexp.MustCompile(`Action\s*\d*\s*Input\s*\d*\s*:`)
)

// Parse classifies a generation. It is total: every string maps to exactly
// one Outcome and it never panics.
//
// When both an action and "Final Answer:" appear, whichever starts first
// wins. An action input runs to the end of the text, or to a later
// "Final Answer:", after any stop-sequence fragment is removed. A final
// answer is everything after the first "Final Answer:", even when it
// mentions "Action:" itself.
func Parse(text string) Outcome {
	clean := StripStopFragment(text)

	finalAt := strings.Index(clean, finalAnswerMarker)
	loc := actionRegexp.FindStringSubmatchIndex(clean)

	if loc != nil && (finalAt < 0 || loc[0] < finalAt) {
		tool := strings.TrimSpace(clean[loc[2]:loc[3]])
		input := clean[loc[4]:loc[5]]
		if i := strings.Index(input, finalAnswerMarker); i >= 0 {
			input = input[:i]
		}
		return Action{Tool: tool, ToolInput: cleanToolInput(input), Log: clean}
	}

	if finalAt >= 0 {
		text := clean[finalAt+len(finalAnswerMarker):]
		return FinalAnswer{Text: strings.TrimSpace(text), Log: clean}
	}

	if !actionOnlyRegexp.MatchString(clean) {
		return ParseError{Reason: MissingActionAfterThought, Log: clean}
	}
	// "Action:" is present; either "Action Input:" is missing or it precedes the action.
	return ParseError{Reason: MissingActionInputAfterAction, Log: clean}
}

// cleanToolInput trims surrounding whitespace, then surrounding quotes.
func cleanToolInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return s
}

// StripStopFragment removes a leaked stop sequence and everything after it,
// plus a trailing line that is a non-empty prefix of "Observation:" ("O",
// "Ob", "Observ", ...), then trims trailing whitespace.
func StripStopFragment(text string) string {
	if i := strings.Index(text, StopSequence); i >= 0 {
		text = text[:i]
	}
	if nl := strings.LastIndexByte(text, '\n'); nl >= 0 {
		last := strings.TrimSpace(text[nl+1:])
		if last != "" && strings.HasPrefix(observationMarker, last) {
			text = text[:nl]
		}
	}
	return strings.TrimRight(text, " \t\r\n")
}

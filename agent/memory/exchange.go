package memory

import (
	"strings"
	"time"
)

// ToolTrace is a tool step folded into memory alongside its exchange.
type ToolTrace struct {
	Tool        string `json:"tool"`
	Input       string `json:"input,omitempty"`
	Observation string `json:"observation"`
}

// Exchange is one committed (input, output) pair.
type Exchange struct {
	Input     string      `json:"input"`
	Output    string      `json:"output"`
	Tools     []ToolTrace `json:"tools,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// RenderHistory formats exchanges for the {chat_history} prompt slot.
func RenderHistory(exchanges []Exchange) string {
	var b strings.Builder
	for i, ex := range exchanges {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Human: ")
		b.WriteString(ex.Input)
		b.WriteByte('\n')
		for _, tr := range ex.Tools {
			b.WriteString("Tool ")
			b.WriteString(tr.Tool)
			b.WriteString(" -> ")
			b.WriteString(tr.Observation)
			b.WriteByte('\n')
		}
		b.WriteString("AI: ")
		b.WriteString(ex.Output)
	}
	return b.String()
}

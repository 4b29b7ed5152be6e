package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/agentloop/types"
)

// Slot names understood by Composer.
const (
	SlotInput       = "input"
	SlotTools       = "tools"
	SlotToolNames   = "tool_names"
	SlotChatHistory = "chat_history"
	SlotScratchpad  = "agent_scratchpad"
)

// ForceFinalSuffix is appended to the scratchpad for the forced final generation.
const ForceFinalSuffix = "\n\nI now need to return a final answer based on the previous steps:"

// slotRegexp matches {name}.
var slotRegexp = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Tool is the name and description rendered into {tools}.
type Tool struct {
	Name        string
	Description string
}

// Vars are the per-iteration slot values.
type Vars struct {
	Input       string
	ChatHistory string
	Scratchpad  string
}

// Composer renders a validated template.
type Composer struct {
	template  string
	tools     string
	toolNames string
}

// Validate checks that template has the slots the loop cannot work without.
func Validate(template string) error {
	if strings.TrimSpace(template) == "" {
		return types.NewError(types.ErrInvalidTemplate, "prompt template is empty")
	}
	seen := map[string]bool{}
	for _, m := range slotRegexp.FindAllStringSubmatch(template, -1) {
		seen[m[1]] = true
	}
	var missing []string
	for _, required := range []string{SlotInput, SlotScratchpad} {
		if !seen[required] {
			missing = append(missing, "{"+required+"}")
		}
	}
	if len(missing) > 0 {
		return types.NewError(types.ErrInvalidTemplate,
			fmt.Sprintf("prompt template is missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

// NewComposer validates template and pre-renders the tool slots.
func NewComposer(template string, tools []Tool) (*Composer, error) {
	if err := Validate(template); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, t.Name+": "+t.Description)
		names = append(names, t.Name)
	}
	return &Composer{
		template:  template,
		tools:     strings.Join(lines, "\n"),
		toolNames: strings.Join(names, ", "),
	}, nil
}

// Compose renders the prompt for a regular iteration.
func (c *Composer) Compose(v Vars) string {
	return c.render(v)
}

// ComposeFinal renders the prompt for the forced final generation after the
// iteration budget is spent.
func (c *Composer) ComposeFinal(v Vars) string {
	v.Scratchpad += ForceFinalSuffix
	return c.render(v)
}

func (c *Composer) render(v Vars) string {
	values := map[string]string{
		SlotInput:       v.Input,
		SlotTools:       c.tools,
		SlotToolNames:   c.toolNames,
		SlotChatHistory: v.ChatHistory,
		SlotScratchpad:  v.Scratchpad,
	}
	return slotRegexp.ReplaceAllStringFunc(c.template, func(match string) string {
		name := match[1 : len(match)-1]
		if val, ok := values[name]; ok {
			return val
		}
		return match
	})
}

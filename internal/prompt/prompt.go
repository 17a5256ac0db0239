// Package prompt assembles the system+turns prompt that is re-rendered
// on every orchestrator step, so the backing model's KV cache can
// accelerate the unchanged prefix. WrapToolResult's <tool_call_results>
// wrapping is contractual: the chat templates the models are trained with
// expect tool output in that envelope.
package prompt

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/vico-ai/vico/internal/orchestrator/turn"
)

// ToolDescriptor documents one entry of the tool catalog rendered into the
// system prompt.
type ToolDescriptor struct {
	Name        string
	Description string
}

// Assembler builds the full prompt text for a turn list. The system prompt
// parts come in this order: current date (when InjectCurrentDate is set),
// instructions, platform, tool catalog (when non-empty).
type Assembler struct {
	AgentName         string
	Instructions      string
	ToolCatalog       []ToolDescriptor
	InjectCurrentDate bool
}

// NewAssembler returns an Assembler seeded with the base Vico
// instructions.
func NewAssembler(agentName string, catalog []ToolDescriptor) *Assembler {
	return &Assembler{
		AgentName: agentName,
		Instructions: strings.TrimSpace(`
Assist the user with their query.
Use tool calls in succession until the task is complete.
Iterate on responses using tool calls to gain new information.
Do not fabricate memories or information - when uncertain, use a research or memory tool.
Favor detailed responses and as many tool calls as the task needs.`),
		ToolCatalog:       catalog,
		InjectCurrentDate: true,
	}
}

// SystemPrompt renders the system turn's body.
func (a *Assembler) SystemPrompt() string {
	var parts []string

	if a.InjectCurrentDate {
		parts = append(parts, fmt.Sprintf("The current date is %s.", time.Now().Format("2006-01-02")))
	}
	parts = append(parts, a.Instructions)
	parts = append(parts, fmt.Sprintf("Platform: %s/%s", runtime.GOOS, runtime.GOARCH))

	if len(a.ToolCatalog) > 0 {
		parts = append(parts, a.toolInstructions())
	}

	return strings.Join(parts, "\n\n")
}

func (a *Assembler) toolInstructions() string {
	var b strings.Builder
	b.WriteString("# Available Tools\n\n")
	for _, t := range a.ToolCatalog {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	b.WriteString("\nInvoke a tool with a <tool_call>...</tool_call> block naming the tool and its arguments.")
	return b.String()
}

// Render re-renders the full turn list into the provider-facing prompt
// turns, prepending a freshly built system turn. Called on every
// orchestrator step so the prompt cache accelerates the common prefix.
func (a *Assembler) Render(turns []turn.Turn) []turn.Turn {
	rendered := make([]turn.Turn, 0, len(turns)+1)
	rendered = append(rendered, turn.New(turn.RoleSystem, a.SystemPrompt()))
	rendered = append(rendered, turns...)
	return rendered
}

// WrapToolResult wraps a tool's textual result in the contractual
// <tool_call_results> block the model templates expect.
func WrapToolResult(resultText string) string {
	return fmt.Sprintf("<tool_call_results>\n\t%s\n</tool_call_results>", resultText)
}

// Package turn defines the conversation Turn record, factored into its
// own package so both internal/prompt and internal/orchestrator can depend
// on it without an import cycle between them.
package turn

import "github.com/oklog/ulid/v2"

// Role identifies who produced a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one record in the conversation fed to the model. Role Tool
// requires ToolName to be set. Bodies are never mutated after append. ID
// identifies the turn for logging/tracing correlation (e.g. matching a
// tool-role turn back to the tool_call_start/tool_call_end pair that
// produced it); it plays no role in prompt assembly or cache-key derivation.
type Turn struct {
	ID       string
	Role     Role
	ToolName string
	Text     string
}

// New constructs a user, assistant or system turn, assigning it a fresh
// ulid.
func New(role Role, text string) Turn {
	return Turn{ID: ulid.Make().String(), Role: role, Text: text}
}

// NewTool constructs a tool-role turn, requiring a non-empty tool name per
// the Turn invariant.
func NewTool(name, text string) Turn {
	return Turn{ID: ulid.Make().String(), Role: RoleTool, ToolName: name, Text: text}
}

package models

import "encoding/json"

// Roles for transcript turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one entry in a session transcript: a user message, an assistant
// reply (possibly carrying tool calls), or a tool result tagged with the
// call it answers.
type Turn struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a structured request issued by the LLM to invoke a named tool.
// Arguments is the raw JSON object as produced by the model; it is decoded
// against the tool's schema at dispatch time.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolSpec describes one callable tool in the menu surfaced to the LLM.
// Parameters is a JSON-schema object.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Completion is the resolved outcome of one LLM round: either a set of tool
// calls to dispatch, or (when ToolCalls is empty) a final answer.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// UserTurn builds a user transcript entry.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant transcript entry.
func AssistantTurn(content string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolTurn builds a tool-result transcript entry. The payload is serialized
// as the turn content so the LLM can read it next round.
func ToolTurn(callID string, payload any) (Turn, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Turn{}, err
	}
	return Turn{Role: RoleTool, ToolCallID: callID, Content: string(body)}, nil
}

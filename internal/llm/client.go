package llm

import "context"

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation. Conversations are append-only and
// ordered; the first message is always the system prompt, set once at session
// creation and never re-injected.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool result messages
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is the canonical form of a backend's request to invoke a tool.
// Args is always a decoded map; undecodable arguments degrade to an empty map.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ToolResult is the serialized outcome of one tool call, appended to the
// conversation as a tool-role message before the next backend call.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
}

// Message converts the result into its conversation form.
func (r ToolResult) Message() Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Content,
		ToolCallID: r.ToolCallID,
		ToolName:   r.Name,
	}
}

// Response is the backend-agnostic reply: final content, one or more tool
// calls, or free-text that still encodes a tool call (see Normalize).
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Tool describes one callable offered to the backend. Parameters is a
// JSON Schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Client is one LLM backend. Chat sends the full conversation (system prompt
// first) plus the tool schemas and returns the canonical response. Transport
// failures come back as *BackendError, never raw transport errors.
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
	// Available reports whether the backend can serve requests right now.
	// Consulted only at manager construction, for fallback selection.
	Available(ctx context.Context) bool
}

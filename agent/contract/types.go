package contract

import "time"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the assistant.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult pairs 1:1 with a ToolCall by id. Dispatch failures are folded
// into Output with IsError set, never raised past the registry.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message is one conversation entry. Immutable once stored. ToolCalls is
// populated only on assistant messages, ToolResults only on tool messages.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

func UserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: at}
}

func AssistantMessage(content string, at time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: at}
}

func ToolCallMessage(content string, calls []ToolCall, at time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls, Timestamp: at}
}

func ToolResultsMessage(results []ToolResult, at time.Time) Message {
	return Message{Role: RoleTool, ToolResults: results, Timestamp: at}
}

// Schema is the subset of JSON Schema used to describe tool parameters:
// an object with typed properties and a required list.
type Schema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// ObjectSchema builds an object schema from property definitions.
func ObjectSchema(properties map[string]any, required ...string) Schema {
	return Schema{Type: "object", Properties: properties, Required: required}
}

// ToolDescriptor is the static metadata advertised to the model so it can
// request invocation. Registered once at startup, never mutated.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// CompletionRequest carries one provider round: the system prompt, the
// conversation so far, and the advertised tool descriptors.
type CompletionRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDescriptor
}

// Completion is the normalized provider answer: either a final text answer
// (no tool calls) or one-or-more tool calls surfaced together, all of which
// must be executed and fed back before the next Complete.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

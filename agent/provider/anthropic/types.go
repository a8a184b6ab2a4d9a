package anthropic

import (
	"fmt"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
)

// messageRequest follows the Anthropic Messages API contract.
type messageRequest struct {
	Model     string           `json:"model"`
	Messages  []messageParam   `json:"messages"`
	System    string           `json:"system,omitempty"`
	MaxTokens int              `json:"max_tokens"`
	Tools     []toolDefinition `json:"tools,omitempty"`
}

// messageParam is a single conversational turn.
type messageParam struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// contentBlock is the union of text, tool_use, and tool_result blocks.
type contentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type toolDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema contractx.Schema `json:"input_schema"`
}

type messageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// apiError surfaces Anthropic errors with HTTP metadata.
type apiError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e apiError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("anthropic api error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("anthropic api error (%d, %s): %s", e.StatusCode, e.Type, e.Message)
}

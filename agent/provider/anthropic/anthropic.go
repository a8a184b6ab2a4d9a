// Package anthropic adapts the Anthropic Messages API to the provider
// contract.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

// Client is a non-streaming Messages API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	timeout    time.Duration
}

var _ contractx.Provider = (*Client)(nil)

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}

	c := &Client{
		baseURL:   defaultBaseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: defaultMaxTokens,
		timeout:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Complete performs one blocking Messages API round.
func (c *Client) Complete(ctx context.Context, req contractx.CompletionRequest) (*contractx.Completion, error) {
	payload := c.buildPayload(req)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%w: encode anthropic request: %v", contractx.ErrProviderFatal, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: build anthropic request: %v", contractx.ErrProviderFatal, err)
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: anthropic request failed: %v", contractx.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyError(readAPIError(resp))
	}

	var msgResp messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, fmt.Errorf("%w: decode anthropic response: %v", contractx.ErrProviderTransient, err)
	}
	return normalize(msgResp), nil
}

func (c *Client) buildPayload(req contractx.CompletionRequest) messageRequest {
	payload := messageRequest{
		Model:     c.model,
		System:    req.System,
		MaxTokens: c.maxTokens,
		Messages:  toMessageParams(req.Messages),
	}
	for _, desc := range req.Tools {
		payload.Tools = append(payload.Tools, toolDefinition{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.Parameters,
		})
	}
	return payload
}

// toMessageParams maps the internal transcript onto Anthropic turns.
// Tool results travel as user-role tool_result blocks per the Messages
// API contract.
func toMessageParams(messages []contractx.Message) []messageParam {
	out := make([]messageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case contractx.RoleSystem:
			// System text rides the top-level field, never the turn list.
			continue
		case contractx.RoleTool:
			blocks := make([]contentBlock, 0, len(msg.ToolResults))
			for _, res := range msg.ToolResults {
				blocks = append(blocks, contentBlock{
					Type:      "tool_result",
					ToolUseID: res.ToolCallID,
					Content:   res.Output,
					IsError:   res.IsError,
				})
			}
			if len(blocks) > 0 {
				out = append(out, messageParam{Role: "user", Content: blocks})
			}
		case contractx.RoleAssistant:
			blocks := make([]contentBlock, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				input := call.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, contentBlock{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  call.Name,
					Input: input,
				})
			}
			if len(blocks) > 0 {
				out = append(out, messageParam{Role: "assistant", Content: blocks})
			}
		default:
			out = append(out, messageParam{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}
	return out
}

func normalize(resp messageResponse) *contractx.Completion {
	var text strings.Builder
	var calls []contractx.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, contractx.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return &contractx.Completion{Text: text.String(), ToolCalls: calls}
}

func readAPIError(resp *http.Response) apiError {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return apiError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return apiError{StatusCode: resp.StatusCode, Type: parsed.Error.Type, Message: parsed.Error.Message}
	}
	return apiError{StatusCode: resp.StatusCode, Message: string(body)}
}

// classifyError maps HTTP status to the two provider error classes:
// rate limits and server errors are retryable, everything else is not.
func classifyError(e apiError) error {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %v", contractx.ErrProviderTransient, e)
	}
	return fmt.Errorf("%w: %v", contractx.ErrProviderFatal, e)
}

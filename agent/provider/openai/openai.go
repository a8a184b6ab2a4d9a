// Package openai adapts the OpenAI Chat Completions API to the provider
// contract via the official SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

const (
	defaultModel     = openaisdk.ChatModelGPT4o
	defaultMaxTokens = 1024
)

// Client wraps the SDK client behind the provider contract.
type Client struct {
	client    openaisdk.Client
	model     string
	maxTokens int
}

var _ contractx.Provider = (*Client)(nil)

type Option func(*clientOptions)

type clientOptions struct {
	baseURL     string
	maxTokens   int
	requestOpts []option.RequestOption
}

func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithMaxTokens(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithRequestOptions passes extra SDK options (tests inject an httptest
// client this way).
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *clientOptions) {
		o.requestOpts = append(o.requestOpts, opts...)
	}
}

func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}

	options := clientOptions{maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(&options)
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if options.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(options.baseURL))
	}
	requestOpts = append(requestOpts, options.requestOpts...)

	return &Client{
		client:    openaisdk.NewClient(requestOpts...),
		model:     model,
		maxTokens: options.maxTokens,
	}, nil
}

// Complete performs one blocking chat completion round.
func (c *Client) Complete(ctx context.Context, req contractx.CompletionRequest) (*contractx.Completion, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrProviderFatal, err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", contractx.ErrProviderTransient)
	}
	return parseCompletion(resp.Choices[0].Message)
}

func (c *Client) buildParams(req contractx.CompletionRequest) (openaisdk.ChatCompletionNewParams, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case contractx.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(msg.Content))
		case contractx.RoleUser:
			messages = append(messages, openaisdk.UserMessage(msg.Content))
		case contractx.RoleAssistant:
			param, err := assistantParam(msg)
			if err != nil {
				return openaisdk.ChatCompletionNewParams{}, err
			}
			messages = append(messages, param)
		case contractx.RoleTool:
			for _, res := range msg.ToolResults {
				messages = append(messages, openaisdk.ToolMessage(res.Output, res.ToolCallID))
			}
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openaisdk.Int(int64(c.maxTokens)),
	}
	for _, desc := range req.Tools {
		params.Tools = append(params.Tools, openaisdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        desc.Name,
			Description: openaisdk.String(desc.Description),
			Parameters:  schemaParameters(desc.Parameters),
		}))
	}
	return params, nil
}

func assistantParam(msg contractx.Message) (openaisdk.ChatCompletionMessageParamUnion, error) {
	if len(msg.ToolCalls) == 0 {
		return openaisdk.AssistantMessage(msg.Content), nil
	}

	assistant := openaisdk.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		assistant.Content.OfString = openaisdk.String(msg.Content)
	}
	for _, call := range msg.ToolCalls {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			return openaisdk.ChatCompletionMessageParamUnion{}, fmt.Errorf("marshal tool call arguments: %w", err)
		}
		assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(args),
				},
			},
		})
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}, nil
}

func schemaParameters(schema contractx.Schema) shared.FunctionParameters {
	params := shared.FunctionParameters{"type": schema.Type}
	if schema.Properties != nil {
		params["properties"] = schema.Properties
	} else {
		params["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	return params
}

// parseCompletion normalizes the SDK message: text plus decoded tool
// calls, with the JSON-string arguments unmarshalled into maps.
func parseCompletion(msg openaisdk.ChatCompletionMessage) (*contractx.Completion, error) {
	completion := &contractx.Completion{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: malformed tool call arguments for %s: %v",
					contractx.ErrProviderTransient, tc.Function.Name, err)
			}
		}
		completion.ToolCalls = append(completion.ToolCalls, contractx.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return completion, nil
}

func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.StatusCode) {
			return fmt.Errorf("%w: %v", contractx.ErrProviderTransient, err)
		}
		return fmt.Errorf("%w: %v", contractx.ErrProviderFatal, err)
	}
	// No API error type means the request never got a response.
	return fmt.Errorf("%w: %v", contractx.ErrProviderTransient, err)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}

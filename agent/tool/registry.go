package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

// Tool is the fixed capability interface every tool conforms to.
type Tool interface {
	Describe() contractx.ToolDescriptor
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the tool descriptors and dispatches named invocations.
// Populated explicitly at startup; descriptor order is stable for the
// process lifetime so providers may cache schemas.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its descriptor name.
func (r *Registry) Register(t Tool) error {
	desc := t.Describe()
	name := strings.TrimSpace(desc.Name)
	if name == "" {
		return fmt.Errorf("%w: empty tool name", contractx.ErrInvalidArguments)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateTool, name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)

	log.Debug().Str("tool", name).Msg("registered tool")
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Descriptors returns every registered descriptor in registration order.
func (r *Registry) Descriptors() []contractx.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]contractx.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.tools[name].Describe())
	}
	return descs
}

// Dispatch runs one tool call and always returns a ToolResult. Unknown
// names, schema violations, executor errors, and executor panics all
// become error-flagged results so one failing tool cannot abort a turn.
func (r *Registry) Dispatch(ctx context.Context, call contractx.ToolCall) contractx.ToolResult {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	names := make([]string, 0, len(r.order))
	names = append(names, r.order...)
	r.mu.RUnlock()

	if !ok {
		sort.Strings(names)
		available := strings.Join(names, ", ")
		if available == "" {
			available = "(none)"
		}
		log.Warn().Str("tool", call.Name).Msg("dispatch of unknown tool")
		return errorResult(call, fmt.Sprintf("%v: %q. Available tools: %s", contractx.ErrUnknownTool, call.Name, available))
	}

	if err := validateArguments(call.Arguments, t.Describe().Parameters); err != nil {
		log.Warn().Str("tool", call.Name).Err(err).Msg("tool arguments rejected")
		return errorResult(call, fmt.Sprintf("%v: %v", contractx.ErrInvalidArguments, err))
	}

	log.Info().Str("tool", call.Name).Str("call_id", call.ID).Msg("executing tool")
	output, err := r.execute(ctx, t, call)
	if err != nil {
		log.Error().Str("tool", call.Name).Err(err).Msg("tool execution failed")
		return errorResult(call, fmt.Sprintf("%v: %v", contractx.ErrToolExecution, err))
	}
	return contractx.ToolResult{ToolCallID: call.ID, Output: output}
}

func (r *Registry) execute(ctx context.Context, t Tool, call contractx.ToolCall) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in tool %s: %v", call.Name, rec)
		}
	}()
	return t.Execute(ctx, call.Arguments)
}

func errorResult(call contractx.ToolCall, msg string) contractx.ToolResult {
	return contractx.ToolResult{ToolCallID: call.ID, Output: msg, IsError: true}
}

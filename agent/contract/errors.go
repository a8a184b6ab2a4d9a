package contract

import "errors"

var (
	// Tool-scoped failures. All three are captured as error-flagged
	// ToolResults by the registry, never propagated out of a turn.
	ErrDuplicateTool    = errors.New("tool name already registered")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrToolExecution    = errors.New("tool execution failed")

	// Provider failures. Transient errors are retried with backoff inside
	// the provider layer; fatal errors terminate the turn with an apology.
	ErrProviderTransient = errors.New("transient provider failure")
	ErrProviderFatal     = errors.New("fatal provider failure")

	// ErrMemoryStore wraps persistence failures. Escalated, never swallowed.
	ErrMemoryStore = errors.New("memory store failure")
)

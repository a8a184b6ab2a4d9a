package contract

import "context"

// Provider normalizes one LLM vendor's wire shape to the internal
// Completion contract. Selecting the vendor is a configuration choice;
// callers never branch on vendor identity.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

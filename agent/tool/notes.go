package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
	memoryx "github.com/tanpawarit/majordomo/agent/memory"
)

const defaultRecallLimit = 10

// RememberTool writes a free-form thought into the memory store so it
// survives across conversations.
type RememberTool struct {
	store memoryx.Store
}

var _ Tool = (*RememberTool)(nil)

func NewRememberTool(store memoryx.Store) *RememberTool {
	return &RememberTool{store: store}
}

func (t *RememberTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name: "remember_thought",
		Description: "Save a thought, fact, or preference to long-term memory " +
			"so it can be recalled in later conversations.",
		Parameters: contractx.ObjectSchema(map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The thought to remember, phrased so it is useful on its own later.",
			},
		}, "content"),
	}
}

func (t *RememberTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content must not be empty")
	}

	id, err := t.store.SaveNote(ctx, content)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Noted (memory #%d).", id), nil
}

// RecallTool searches long-term memory for previously remembered thoughts.
type RecallTool struct {
	store memoryx.Store
}

var _ Tool = (*RecallTool)(nil)

func NewRecallTool(store memoryx.Store) *RecallTool {
	return &RecallTool{store: store}
}

func (t *RecallTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name: "recall_thoughts",
		Description: "Search long-term memory for previously remembered thoughts. " +
			"Leave the query empty to list the most recent ones.",
		Parameters: contractx.ObjectSchema(map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Substring to search for. Optional.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of thoughts to return (default 10).",
			},
		}),
	}
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	limit := defaultRecallLimit
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	notes, err := t.store.SearchNotes(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "No matching memories found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n", len(notes))
	for _, n := range notes {
		fmt.Fprintf(&b, "  #%d (%s): %s\n", n.ID, n.CreatedAt.Format("2006-01-02"), n.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

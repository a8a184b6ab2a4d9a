package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

type stubTool struct {
	desc contractx.ToolDescriptor
	fn   func(ctx context.Context, args map[string]any) (string, error)
}

func (s *stubTool) Describe() contractx.ToolDescriptor { return s.desc }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return s.fn(ctx, args)
}

func newStubTool(name string, fn func(ctx context.Context, args map[string]any) (string, error)) *stubTool {
	return &stubTool{
		desc: contractx.ToolDescriptor{
			Name:        name,
			Description: "stub",
			Parameters: contractx.ObjectSchema(map[string]any{
				"input": map[string]any{"type": "string"},
			}, "input"),
		},
		fn: fn,
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	echo := newStubTool("echo", func(_ context.Context, args map[string]any) (string, error) {
		return args["input"].(string), nil
	})
	if err := r.Register(echo); err != nil {
		t.Fatalf("first Register returned %v", err)
	}

	err := r.Register(newStubTool("echo", nil))
	if !errors.Is(err, contractx.ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryDescriptorsKeepRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		tool := newStubTool(name, func(_ context.Context, _ map[string]any) (string, error) {
			return "", nil
		})
		if err := r.Register(tool); err != nil {
			t.Fatalf("Register(%s) returned %v", name, err)
		}
	}

	descs := r.Descriptors()
	got := make([]string, len(descs))
	for i, d := range descs {
		got[i] = d.Name
	}
	want := []string{"zeta", "alpha", "mid"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("descriptor order = %v, want %v", got, want)
		}
	}
}

func TestDispatchUnknownToolReturnsErrorResult(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	echo := newStubTool("echo", func(_ context.Context, args map[string]any) (string, error) {
		return args["input"].(string), nil
	})
	if err := r.Register(echo); err != nil {
		t.Fatalf("Register returned %v", err)
	}

	res := r.Dispatch(context.Background(), contractx.ToolCall{ID: "c1", Name: "missing"})
	if !res.IsError {
		t.Fatal("expected IsError result for unknown tool")
	}
	if res.ToolCallID != "c1" {
		t.Fatalf("ToolCallID = %q, want c1", res.ToolCallID)
	}
	if !strings.Contains(res.Output, "echo") {
		t.Fatalf("output should list available tools, got %q", res.Output)
	}
}

func TestDispatchRejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	called := false
	echo := newStubTool("echo", func(_ context.Context, _ map[string]any) (string, error) {
		called = true
		return "", nil
	})
	if err := r.Register(echo); err != nil {
		t.Fatalf("Register returned %v", err)
	}

	// Missing required "input".
	res := r.Dispatch(context.Background(), contractx.ToolCall{ID: "c1", Name: "echo"})
	if !res.IsError {
		t.Fatal("expected IsError result for missing required field")
	}
	if called {
		t.Fatal("executor must not run when validation fails")
	}

	// Wrong type for "input".
	res = r.Dispatch(context.Background(), contractx.ToolCall{
		ID: "c2", Name: "echo", Arguments: map[string]any{"input": 42},
	})
	if !res.IsError {
		t.Fatal("expected IsError result for mistyped field")
	}
}

func TestDispatchFoldsExecutorErrorIntoResult(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	boom := newStubTool("boom", func(_ context.Context, _ map[string]any) (string, error) {
		return "", errors.New("backend unreachable")
	})
	if err := r.Register(boom); err != nil {
		t.Fatalf("Register returned %v", err)
	}

	res := r.Dispatch(context.Background(), contractx.ToolCall{
		ID: "c1", Name: "boom", Arguments: map[string]any{"input": "x"},
	})
	if !res.IsError {
		t.Fatal("expected IsError result for executor error")
	}
	if !strings.Contains(res.Output, "backend unreachable") {
		t.Fatalf("output should carry the executor error, got %q", res.Output)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	panicky := newStubTool("panicky", func(_ context.Context, _ map[string]any) (string, error) {
		panic("nil map write")
	})
	if err := r.Register(panicky); err != nil {
		t.Fatalf("Register returned %v", err)
	}

	res := r.Dispatch(context.Background(), contractx.ToolCall{
		ID: "c1", Name: "panicky", Arguments: map[string]any{"input": "x"},
	})
	if !res.IsError {
		t.Fatal("expected IsError result after panic")
	}
	if !strings.Contains(res.Output, "panic") {
		t.Fatalf("output should mention the panic, got %q", res.Output)
	}
}

func TestValidateArguments(t *testing.T) {
	t.Parallel()

	schema := contractx.ObjectSchema(map[string]any{
		"name":  map[string]any{"type": "string"},
		"count": map[string]any{"type": "integer"},
		"ratio": map[string]any{"type": "number"},
		"flag":  map[string]any{"type": "boolean"},
	}, "name")

	cases := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"valid full", map[string]any{"name": "a", "count": float64(3), "ratio": 0.5, "flag": true}, false},
		{"only required", map[string]any{"name": "a"}, false},
		{"missing required", map[string]any{"count": float64(3)}, true},
		{"integer with fraction", map[string]any{"name": "a", "count": 3.5}, true},
		{"string as integer", map[string]any{"name": "a", "count": "3"}, true},
		{"unknown key ignored", map[string]any{"name": "a", "extra": struct{}{}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateArguments(tc.args, schema)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

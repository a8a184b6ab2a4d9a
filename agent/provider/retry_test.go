package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

type fakeProvider struct {
	calls   int
	results []error
	text    string
}

func (f *fakeProvider) Complete(_ context.Context, _ contractx.CompletionRequest) (*contractx.Completion, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.results) && f.results[idx] != nil {
		return nil, f.results[idx]
	}
	return &contractx.Completion{Text: f.text}, nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	t.Parallel()

	transient := fmt.Errorf("%w: http 503", contractx.ErrProviderTransient)
	inner := &fakeProvider{results: []error{transient, transient}, text: "done"}

	r := WithRetry(inner, 3, time.Millisecond).(*retryingProvider)
	r.sleep = noSleep

	completion, err := r.Complete(context.Background(), contractx.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete returned %v", err)
	}
	if completion.Text != "done" {
		t.Fatalf("Text = %q, want done", completion.Text)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	transient := fmt.Errorf("%w: http 429", contractx.ErrProviderTransient)
	inner := &fakeProvider{results: []error{transient, transient, transient, transient, transient}}

	r := WithRetry(inner, 3, time.Millisecond).(*retryingProvider)
	r.sleep = noSleep

	_, err := r.Complete(context.Background(), contractx.CompletionRequest{})
	if !errors.Is(err, contractx.ErrProviderTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	// Initial attempt plus three retries.
	if inner.calls != 4 {
		t.Fatalf("calls = %d, want 4", inner.calls)
	}
}

func TestRetryDoesNotRetryFatalErrors(t *testing.T) {
	t.Parallel()

	fatal := fmt.Errorf("%w: invalid api key", contractx.ErrProviderFatal)
	inner := &fakeProvider{results: []error{fatal}}

	r := WithRetry(inner, 3, time.Millisecond).(*retryingProvider)
	r.sleep = noSleep

	_, err := r.Complete(context.Background(), contractx.CompletionRequest{})
	if !errors.Is(err, contractx.ErrProviderFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	transient := fmt.Errorf("%w: http 500", contractx.ErrProviderTransient)
	inner := &fakeProvider{results: []error{transient, transient, transient, transient}}

	ctx, cancel := context.WithCancel(context.Background())
	r := WithRetry(inner, 3, time.Millisecond).(*retryingProvider)
	r.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := r.Complete(ctx, contractx.CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}

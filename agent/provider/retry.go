package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = time.Second
)

// retryingProvider retries transient failures with exponential backoff.
// Fatal errors and context cancellation pass through immediately.
type retryingProvider struct {
	inner      contractx.Provider
	maxRetries int
	base       time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps p so that ErrProviderTransient completions are retried
// up to maxRetries times, doubling the delay each attempt.
func WithRetry(p contractx.Provider, maxRetries int, base time.Duration) contractx.Provider {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if base <= 0 {
		base = defaultRetryBase
	}
	return &retryingProvider{
		inner:      p,
		maxRetries: maxRetries,
		base:       base,
		sleep:      sleepCtx,
	}
}

func (r *retryingProvider) Complete(ctx context.Context, req contractx.CompletionRequest) (*contractx.Completion, error) {
	var lastErr error
	delay := r.base
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying provider completion")
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		completion, err := r.inner.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}
		if !errors.Is(err, contractx.ErrProviderTransient) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

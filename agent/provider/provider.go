// Package provider selects and decorates the model backend. Everything
// above this package speaks contract.Provider and the two error classes;
// vendor shapes never leak past the adapters.
package provider

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
	anthropicx "github.com/tanpawarit/majordomo/agent/provider/anthropic"
	openaix "github.com/tanpawarit/majordomo/agent/provider/openai"
)

// Config selects and tunes the model backend.
type Config struct {
	Provider   string        `envconfig:"PROVIDER" split_words:"true" default:"anthropic"`
	APIKey     string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model      string        `envconfig:"MODEL" split_words:"true"`
	BaseURL    string        `envconfig:"BASE_URL" split_words:"true"`
	MaxTokens  int           `envconfig:"MAX_TOKENS" split_words:"true" default:"1024"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	MaxRetries int           `envconfig:"MAX_RETRIES" split_words:"true" default:"3"`
	RetryBase  time.Duration `envconfig:"RETRY_BASE" split_words:"true" default:"1s"`
}

// New builds the configured adapter and wraps it with transient-error
// retry. The returned Provider is safe for concurrent use.
func New(cfg Config) (contractx.Provider, error) {
	var (
		p   contractx.Provider
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "anthropic":
		p, err = anthropicx.NewClient(cfg.APIKey, cfg.Model,
			anthropicx.WithBaseURL(cfg.BaseURL),
			anthropicx.WithMaxTokens(cfg.MaxTokens),
			anthropicx.WithTimeout(cfg.Timeout),
		)
	case "openai":
		p, err = openaix.NewClient(cfg.APIKey, cfg.Model,
			openaix.WithBaseURL(cfg.BaseURL),
			openaix.WithMaxTokens(cfg.MaxTokens),
		)
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic or openai)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(p, cfg.MaxRetries, cfg.RetryBase), nil
}

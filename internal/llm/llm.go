// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides clients for the text generation services used to
// extract blueprints and draft sections. The pipeline treats every client as
// an untrusted text generator behind the Completer interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Options tunes a single completion.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Completer sends a prompt to a generation service and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// ErrMissingAPIKey is returned when a provider is configured without a key.
var ErrMissingAPIKey = errors.New("llm: API key is required")

// APIError is a non-success response from a generation service.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

const defaultMaxTokens = 1024

// New returns the Completer for cfg.Provider. A nil client uses
// http.DefaultClient with cfg.Timeout applied per request.
func New(cfg types.AIConfig, client *http.Client) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", providerName(cfg.Provider), ErrMissingAPIKey)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		return NewClaude(cfg, client), nil
	case types.ProviderOpenAI:
		return NewOpenAI(cfg, client), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q: use anthropic or openai", cfg.Provider)
	}
}

func providerName(p types.AIProvider) string {
	if p == "" {
		return string(types.ProviderAnthropic)
	}
	return string(p)
}

// newLimiter paces requests at rps with a burst of one. A non-positive rps
// disables pacing.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func maxTokens(opts Options) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return defaultMaxTokens
}

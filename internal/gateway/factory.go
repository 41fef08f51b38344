// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Defaults applied when the configuration leaves a field unset.
const (
	DefaultModel       = "gpt-4-turbo-preview"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 2048
	DefaultTimeout     = 120 * time.Second
)

// ParamsFromConfig returns the model parameters carried by every request.
func ParamsFromConfig(cfg types.AIConfig) Params {
	p := Params{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	return p
}

// New builds the configured provider client wrapped with logging, metrics,
// a per-call timeout, and rate limiting, innermost first. metrics may be nil.
func New(cfg types.AIConfig, logger zerolog.Logger, metrics *observability.Metrics) (Gateway, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// The HTTP client timeout is a backstop; WithTimeout is the real bound.
	client := &http.Client{Timeout: timeout + 5*time.Second}

	var g Gateway
	provider := cfg.Provider
	if provider == "" {
		provider = types.ProviderOpenAI
	}
	switch provider {
	case types.ProviderOpenAI:
		g = &OpenAI{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: client}
	case types.ProviderAnthropic:
		g = &Anthropic{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: client}
	default:
		return nil, fmt.Errorf("unknown gateway provider %q (want openai or anthropic)", cfg.Provider)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	logger = logger.With().Str("provider", string(provider)).Logger()
	return decorate(g, string(provider), logger, metrics, limiter, timeout), nil
}

// decorate applies the standard middleware stack to g. The limiter is
// outermost so time spent waiting for a token does not count against
// timeout.
func decorate(g Gateway, provider string, logger zerolog.Logger, metrics *observability.Metrics, limiter *rate.Limiter, timeout time.Duration) Gateway {
	g = WithLogging(g, logger)
	g = WithMetrics(g, metrics, provider)
	g = WithTimeout(g, timeout)
	return WithRateLimit(g, limiter)
}

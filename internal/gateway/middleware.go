// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-analyzer/internal/observability"
)

// WithTimeout bounds each call to d. A call that runs out of time fails with
// an error wrapping both ErrGateway and context.DeadlineExceeded. d <= 0
// returns g unchanged.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return g
	}
	return Func(func(ctx context.Context, req Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		reply, err := g.Complete(ctx, req)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: timed out after %v: %w", ErrGateway, d, ctx.Err())
			}
			return "", failure("completion", err)
		}
		return reply, nil
	})
}

// WithRateLimit throttles calls through limiter. Waiting respects ctx; a
// cancelled wait is reported as a gateway failure.
func WithRateLimit(g Gateway, limiter *rate.Limiter) Gateway {
	if limiter == nil {
		return g
	}
	return Func(func(ctx context.Context, req Request) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", failure("rate limiter", err)
		}
		return g.Complete(ctx, req)
	})
}

// WithMetrics records the outcome and latency of each call under provider.
func WithMetrics(g Gateway, m *observability.Metrics, provider string) Gateway {
	if m == nil {
		return g
	}
	return Func(func(ctx context.Context, req Request) (string, error) {
		start := time.Now()
		reply, err := g.Complete(ctx, req)
		outcome := "success"
		if err != nil {
			outcome = "error"
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = "timeout"
			}
		}
		m.RecordGatewayRequest(provider, outcome, time.Since(start).Seconds())
		return reply, err
	})
}

// WithLogging logs each call at debug level and failures at warn level.
func WithLogging(g Gateway, logger zerolog.Logger) Gateway {
	return Func(func(ctx context.Context, req Request) (string, error) {
		start := time.Now()
		reply, err := g.Complete(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			logger.Warn().Err(err).Str("model", req.Params.Model).Dur("elapsed", elapsed).Msg("completion failed")
			return "", err
		}
		logger.Debug().
			Str("model", req.Params.Model).
			Int("prompt_chars", len(req.Prompt)).
			Int("reply_chars", len(reply)).
			Dur("elapsed", elapsed).
			Msg("completion")
		return reply, nil
	})
}

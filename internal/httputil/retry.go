// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the network clients.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// RetryBaseDelay is the first backoff delay when the server sends no
// Retry-After header. Tests override this to avoid real sleeps.
var RetryBaseDelay = 3 * time.Second

// MaxRetryDelay caps a single backoff wait, including server-requested ones.
var MaxRetryDelay = 2 * time.Minute

// DefaultMaxRetries is used when Retrier.MaxRetries is not positive.
const DefaultMaxRetries = 5

// Retrier sends requests and retries on HTTP 429 and 503 with exponential
// backoff. A Retry-After header given in seconds overrides the computed delay.
type Retrier struct {
	Client     *http.Client
	MaxRetries int
	Logger     zerolog.Logger
}

// NewRetrier returns a Retrier using client, or http.DefaultClient when nil.
func NewRetrier(client *http.Client, maxRetries int, logger zerolog.Logger) *Retrier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Retrier{Client: client, MaxRetries: maxRetries, Logger: logger}
}

// Do executes req. Each retryable response body is drained and closed
// before waiting. Cancelling ctx during a wait returns ctx.Err(). After the
// retries are exhausted the last retryable response is returned unread so the
// caller can inspect it.
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := r.Client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		r.Logger.Warn().
			Str("url", req.URL.Redacted()).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Dur("backoff", wait).
			Msg("request throttled, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// DoWithRetry is a convenience for a one-off Retrier with a silent logger.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	return NewRetrier(client, maxRetries, zerolog.Nop()).Do(ctx, req)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func backoff(attempt int, retryAfter string) time.Duration {
	d := RetryBaseDelay << attempt
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	}
	if d > MaxRetryDelay || d < 0 {
		d = MaxRetryDelay
	}
	return d
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gateway sends a single instruction to a text-generation API and
// returns the reply text. A Gateway is stateless: each Complete call is an
// independent request with no conversation history.
//
// The HTTP clients (OpenAI, Anthropic) are wrapped by decorators that add a
// per-call timeout, token-bucket throttling, and metrics. Every failure a
// Gateway returns wraps ErrGateway so callers can distinguish transport
// failures from malformed replies.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrGateway is wrapped by every error a Gateway returns: transport failures,
// non-2xx responses, timeouts, and replies with no text.
var ErrGateway = errors.New("gateway failure")

// Params are the model parameters sent with a request.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Request is one instruction to the text-generation API.
type Request struct {
	// System is the system instruction that frames the reply.
	System string

	// Prompt is the user message.
	Prompt string

	Params Params
}

// Gateway abstracts the text-generation API so tests can supply a mock.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts an ordinary function to the Gateway interface.
type Func func(ctx context.Context, req Request) (string, error)

// Complete calls f(ctx, req).
func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// APIError is returned when the API answers with a non-2xx status.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrGateway) match an APIError.
func (e *APIError) Unwrap() error { return ErrGateway }

// failure wraps err with ErrGateway unless it already carries it.
func failure(msg string, err error) error {
	if errors.Is(err, ErrGateway) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrGateway, err)
}

// truncateBody bounds error bodies kept in APIError.
func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

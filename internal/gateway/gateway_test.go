// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

var testReq = Request{
	System: "You are a reviewer.",
	Prompt: "Summarize this.",
	Params: Params{Model: "test-model", Temperature: 0.2, MaxTokens: 100},
}

func TestOpenAIComplete(t *testing.T) {
	var captured openAIRequest
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"the reply"}}]}`))
	}))
	defer ts.Close()

	old := openAIAPIURL
	openAIAPIURL = ts.URL
	defer func() { openAIAPIURL = old }()

	g := &OpenAI{APIKey: "sk-test", Client: ts.Client()}
	reply, err := g.Complete(context.Background(), testReq)
	require.NoError(t, err)

	assert.Equal(t, "the reply", reply)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, 0.2, captured.Temperature)
	assert.Equal(t, 100, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, testReq.System, captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, testReq.Prompt, captured.Messages[1].Content)
}

func TestOpenAIBaseURLOverride(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer ts.Close()

	g := &OpenAI{BaseURL: ts.URL, Client: ts.Client()}
	reply, err := g.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			g := &OpenAI{BaseURL: ts.URL, Client: ts.Client()}
			_, err := g.Complete(context.Background(), testReq)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGateway)

			if tt.status != http.StatusOK {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.status, apiErr.StatusCode)
				assert.Equal(t, "OpenAI", apiErr.Provider)
			}
		})
	}
}

func TestAnthropicComplete(t *testing.T) {
	var captured anthropicRequest
	var key, version string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"tool_use"},{"type":"text","text":"part two"}]}`))
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	g := &Anthropic{APIKey: "ak-test", Client: ts.Client()}
	reply, err := g.Complete(context.Background(), testReq)
	require.NoError(t, err)

	assert.Equal(t, "part one part two", reply)
	assert.Equal(t, "ak-test", key)
	assert.Equal(t, anthropicVersion, version)
	assert.Equal(t, testReq.System, captured.System)
	assert.Equal(t, 100, captured.MaxTokens)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestAnthropicDefaultMaxTokens(t *testing.T) {
	var captured anthropicRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"content":[{"type":"text","text":"x"}]}`))
	}))
	defer ts.Close()

	g := &Anthropic{BaseURL: ts.URL, Client: ts.Client()}
	_, err := g.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, captured.MaxTokens)
}

func TestAnthropicNoText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()

	g := &Anthropic{BaseURL: ts.URL, Client: ts.Client()}
	_, err := g.Complete(context.Background(), testReq)
	assert.ErrorIs(t, err, ErrGateway)
}

func TestTransportErrorWrapsErrGateway(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	g := &OpenAI{BaseURL: url}
	_, err := g.Complete(context.Background(), testReq)
	assert.ErrorIs(t, err, ErrGateway)
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Complete(context.Background(), testReq)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	fast := Func(func(ctx context.Context, req Request) (string, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return "done", nil
	})

	reply, err := WithTimeout(fast, time.Second).Complete(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
}

func TestWithTimeoutWrapsPlainErrors(t *testing.T) {
	failing := Func(func(ctx context.Context, req Request) (string, error) {
		return "", errors.New("boom")
	})

	_, err := WithTimeout(failing, time.Second).Complete(context.Background(), testReq)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "boom")
}

func TestWithRateLimit(t *testing.T) {
	var calls int32
	inner := Func(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})

	// One token, refilled far slower than the test runs.
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	g := WithRateLimit(inner, limiter)

	_, err := g.Complete(context.Background(), testReq)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Complete(ctx, testReq)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecorateTimeoutExcludesLimiterWait(t *testing.T) {
	var calls int32
	inner := Func(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		if time.Until(deadline) <= 0 {
			return "", ctx.Err()
		}
		return "ok", nil
	})

	// The second call queues for about 80ms, longer than the 30ms timeout.
	limiter := rate.NewLimiter(rate.Every(80*time.Millisecond), 1)
	g := decorate(inner, "openai", zerolog.Nop(), nil, limiter, 30*time.Millisecond)

	for i := 0; i < 2; i++ {
		reply, err := g.Complete(context.Background(), testReq)
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, "ok", reply)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWithMetrics(t *testing.T) {
	m := observability.NewMetrics("")
	ok := WithMetrics(Func(func(ctx context.Context, req Request) (string, error) {
		return "ok", nil
	}), m, "openai")
	bad := WithMetrics(Func(func(ctx context.Context, req Request) (string, error) {
		return "", ErrGateway
	}), m, "openai")

	_, _ = ok.Complete(context.Background(), testReq)
	_, _ = ok.Complete(context.Background(), testReq)
	_, _ = bad.Complete(context.Background(), testReq)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("openai", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("openai", "error")))
}

func TestNew(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"via factory"}}]}`))
	}))
	defer ts.Close()

	g, err := New(types.AIConfig{Provider: types.ProviderOpenAI, BaseURL: ts.URL, RateLimit: 100}, zerolog.Nop(), observability.NewMetrics(""))
	require.NoError(t, err)

	reply, err := g.Complete(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, "via factory", reply)

	_, err = New(types.AIConfig{Provider: "mystery"}, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestParamsFromConfig(t *testing.T) {
	p := ParamsFromConfig(types.AIConfig{})
	assert.Equal(t, DefaultModel, p.Model)
	assert.Equal(t, DefaultMaxTokens, p.MaxTokens)

	p = ParamsFromConfig(types.AIConfig{Model: "m", Temperature: 0.7, MaxTokens: 10})
	assert.Equal(t, Params{Model: "m", Temperature: 0.7, MaxTokens: 10}, p)
}

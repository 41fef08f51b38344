// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pdiddy/paper-analyzer/internal/config"
	"github.com/pdiddy/paper-analyzer/internal/container"
	"github.com/pdiddy/paper-analyzer/internal/fulltext"
	"github.com/pdiddy/paper-analyzer/internal/gateway"
	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/internal/pipeline"
	"github.com/pdiddy/paper-analyzer/internal/source"
	"github.com/pdiddy/paper-analyzer/internal/stage"
	"github.com/pdiddy/paper-analyzer/internal/store"
)

func openStore() (*store.Store, error) {
	return store.Open(cfg.Store.Path)
}

// newOrchestrator wires the configured source, gateway, and stage agents
// over st.
func newOrchestrator(ctx context.Context, st *store.Store, metrics *observability.Metrics) (*pipeline.Orchestrator, error) {
	if err := config.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	src, err := source.New(cfg.Source, logger.With().Str("component", "source").Logger())
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(cfg.Gateway, logger.With().Str("component", "gateway").Logger(), metrics)
	if err != nil {
		return nil, err
	}
	agents := stage.NewAgents(gw, cfg.Analysis.InterestedFields, stage.Options{
		Params:  gateway.ParamsFromConfig(cfg.Gateway),
		Logger:  logger,
		Metrics: metrics,
	})
	return pipeline.New(src, agents, st, pipeline.Options{
		Categories:   cfg.Source.Categories,
		Concurrency:  cfg.Pipeline.Concurrency,
		SkipExisting: cfg.Pipeline.SkipExisting,
		FullText:     newFullText(ctx),
		Logger:       logger,
		Metrics:      metrics,
	}), nil
}

// newFullText returns the PDF text fetcher, or nil when full text is disabled
// or no converter can run. Papers are then analyzed from their abstracts.
func newFullText(ctx context.Context) pipeline.FullTextFetcher {
	ft := cfg.FullText
	if !ft.Enabled {
		return nil
	}
	log := logger.With().Str("component", "fulltext").Logger()
	rt, err := container.Detect(ctx, ft.Runtime)
	if err != nil {
		log.Warn().Err(err).Msg("full text disabled")
		return nil
	}
	conv, err := fulltext.NewMarkitdownConverter(ctx, rt, ft.Image)
	if err != nil {
		log.Warn().Err(err).Msg("full text disabled")
		return nil
	}
	return &fulltext.Fetcher{
		Client:      &http.Client{Timeout: cfg.Source.Timeout},
		UserAgent:   cfg.Source.UserAgent,
		MaxRetries:  cfg.Source.MaxRetries,
		RawDir:      ft.RawDir,
		MarkdownDir: ft.MarkdownDir,
		Converter:   conv,
		Logger:      log,
	}
}

// serveMetrics exposes /metrics on addr until the returned stop function is
// called. An empty addr serves nothing.
func serveMetrics(addr string, m *observability.Metrics) (bound string, stop func(), err error) {
	if addr == "" {
		return "", func() {}, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

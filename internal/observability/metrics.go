// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes metric names when none is configured.
const DefaultNamespace = "paper_analyzer"

// Metrics contains the Prometheus metrics for batch runs. Each Metrics owns
// its registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// BatchesTotal counts batch runs by outcome (completed, aborted).
	BatchesTotal *prometheus.CounterVec

	// PapersFetched counts papers returned by the paper source.
	PapersFetched prometheus.Counter

	// PapersProcessed counts papers analyzed and persisted.
	PapersProcessed prometheus.Counter

	// PapersFailed counts papers that failed, labeled by stage.
	PapersFailed *prometheus.CounterVec

	// PapersSkipped counts papers skipped because a stored analysis exists.
	PapersSkipped prometheus.Counter

	// StageDuration observes stage latency in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// GatewayRequests counts gateway calls, labeled by provider and outcome.
	GatewayRequests *prometheus.CounterVec

	// GatewayDuration observes gateway call latency in seconds, labeled by provider.
	GatewayDuration *prometheus.HistogramVec

	// ParserFallbacks counts replies recovered heuristically, labeled by stage.
	ParserFallbacks *prometheus.CounterVec

	// PaperScore observes the overall score of persisted papers.
	PaperScore prometheus.Histogram
}

// NewMetrics creates a Metrics with every collector registered in a fresh
// registry. The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		BatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batch runs by outcome",
		}, []string{"outcome"}),
		PapersFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total number of papers returned by the paper source",
		}),
		PapersProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Total number of papers analyzed and persisted",
		}),
		PapersFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_failed_total",
			Help:      "Total number of papers that failed analysis, by stage",
		}, []string{"stage"}),
		PapersSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_skipped_total",
			Help:      "Total number of papers skipped because they were already analyzed",
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of analysis stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"stage"}),
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of text-generation requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		GatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of text-generation requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		ParserFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parser_fallbacks_total",
			Help:      "Total number of replies recovered by fallback heuristics, by stage",
		}, []string{"stage"}),
		PaperScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "paper_score",
			Help:      "Distribution of overall paper scores",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RegisterRuntimeCollectors adds Go runtime and process collectors, for
// processes that serve /metrics.
func (m *Metrics) RegisterRuntimeCollectors() {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The Record methods accept a nil receiver so callers can run without metrics.

// RecordBatch records a finished batch run.
func (m *Metrics) RecordBatch(outcome string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
}

// RecordPapersFetched records papers returned by a fetch.
func (m *Metrics) RecordPapersFetched(n int) {
	if m == nil {
		return
	}
	m.PapersFetched.Add(float64(n))
}

// RecordPaperProcessed records a persisted paper and its score.
func (m *Metrics) RecordPaperProcessed(score float64) {
	if m == nil {
		return
	}
	m.PapersProcessed.Inc()
	m.PaperScore.Observe(score)
}

// RecordPaperFailed records a paper that failed at stage.
func (m *Metrics) RecordPaperFailed(stage string) {
	if m == nil {
		return
	}
	m.PapersFailed.WithLabelValues(stage).Inc()
}

// RecordPaperSkipped records a paper skipped as already analyzed.
func (m *Metrics) RecordPaperSkipped() {
	if m == nil {
		return
	}
	m.PapersSkipped.Inc()
}

// RecordStage records the duration of one stage invocation.
func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordGatewayRequest records one text-generation call.
func (m *Metrics) RecordGatewayRequest(provider, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(provider, outcome).Inc()
	m.GatewayDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordFallback records a reply recovered by a fallback heuristic.
func (m *Metrics) RecordFallback(stage string) {
	if m == nil {
		return
	}
	m.ParserFallbacks.WithLabelValues(stage).Inc()
}

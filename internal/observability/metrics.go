// Package observability wires Prometheus instrumentation into the
// ingestion, retrieval, and escalation pipelines. It is ambient
// infrastructure, not a tenant-facing feature: Non-goals exclude
// cross-tenant analytics, not operational metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the core pipelines report to.
// A nil *Metrics is valid everywhere it's accepted: every Observe/Increment/Add
// method on it is a no-op, so instrumentation never needs a non-nil check
// at call sites.
type Metrics struct {
	IngestionStageDuration *prometheus.HistogramVec
	IngestionFailuresTotal *prometheus.CounterVec
	IngestionChunksTotal   prometheus.Counter

	RetrievalDuration   *prometheus.HistogramVec
	RetrievalConfidence prometheus.Histogram
	RetrievalEmptyTotal prometheus.Counter

	EscalationAttemptsTotal  *prometheus.CounterVec
	EscalationExhaustedTotal prometheus.Counter

	SweeperSessionsClosedTotal prometheus.Counter
}

// NewMetrics creates and registers every collector against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestionStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestion_stage_duration_seconds",
				Help:    "Duration of each ingestion pipeline stage (parse, chunk, enrich, embed).",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		IngestionFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_failures_total",
				Help: "Total ingestion failures by stage.",
			},
			[]string{"stage"},
		),
		IngestionChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingestion_chunks_total",
				Help: "Total number of chunks produced across all ingested documents.",
			},
		),
		RetrievalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_duration_seconds",
				Help:    "Duration of hybrid retrieval calls.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"outcome"},
		),
		RetrievalConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_confidence",
				Help:    "Confidence score of each retrieval result.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		RetrievalEmptyTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_empty_total",
				Help: "Total retrieval calls against an empty or zero-hit corpus.",
			},
		),
		EscalationAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escalation_webhook_attempts_total",
				Help: "Total escalation webhook delivery attempts by outcome.",
			},
			[]string{"outcome"},
		),
		EscalationExhaustedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "escalation_webhook_exhausted_total",
				Help: "Total escalations where every webhook delivery attempt failed.",
			},
		),
		SweeperSessionsClosedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sweeper_sessions_closed_total",
				Help: "Total sessions force-closed by the idle sweeper.",
			},
		),
	}

	reg.MustRegister(
		m.IngestionStageDuration,
		m.IngestionFailuresTotal,
		m.IngestionChunksTotal,
		m.RetrievalDuration,
		m.RetrievalConfidence,
		m.RetrievalEmptyTotal,
		m.EscalationAttemptsTotal,
		m.EscalationExhaustedTotal,
		m.SweeperSessionsClosedTotal,
	)
	return m
}

// Handler returns the Prometheus scrape endpoint handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveIngestionStage records one ingestion stage's duration. m may be nil.
func (m *Metrics) ObserveIngestionStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.IngestionStageDuration.WithLabelValues(stage).Observe(seconds)
}

// IncrementIngestionFailure records a failed ingestion stage. m may be nil.
func (m *Metrics) IncrementIngestionFailure(stage string) {
	if m == nil {
		return
	}
	m.IngestionFailuresTotal.WithLabelValues(stage).Inc()
}

// AddIngestionChunks records chunks produced by one ingested document. m may be nil.
func (m *Metrics) AddIngestionChunks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestionChunksTotal.Add(float64(n))
}

// ObserveRetrieval records one retrieval call's duration and outcome. m may be nil.
func (m *Metrics) ObserveRetrieval(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RetrievalDuration.WithLabelValues(outcome).Observe(seconds)
}

// ObserveRetrievalConfidence records one retrieval result's confidence score. m may be nil.
func (m *Metrics) ObserveRetrievalConfidence(confidence float64) {
	if m == nil {
		return
	}
	m.RetrievalConfidence.Observe(confidence)
}

// IncrementRetrievalEmpty records a retrieval call against an empty corpus. m may be nil.
func (m *Metrics) IncrementRetrievalEmpty() {
	if m == nil {
		return
	}
	m.RetrievalEmptyTotal.Inc()
}

// IncrementEscalationAttempt records one webhook delivery attempt. m may be nil.
func (m *Metrics) IncrementEscalationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.EscalationAttemptsTotal.WithLabelValues(outcome).Inc()
}

// IncrementEscalationExhausted records every retry of one escalation failing. m may be nil.
func (m *Metrics) IncrementEscalationExhausted() {
	if m == nil {
		return
	}
	m.EscalationExhaustedTotal.Inc()
}

// IncrementSweeperSessionsClosed records one idle session force-closed by
// the sweeper. m may be nil.
func (m *Metrics) IncrementSweeperSessionsClosed() {
	if m == nil {
		return
	}
	m.SweeperSessionsClosedTotal.Inc()
}

// Package observability exposes Prometheus metrics for ingestion, retrieval,
// model calls and grading.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studyhub"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	documentsIngested *prometheus.CounterVec
	chunksIngested    *prometheus.CounterVec
	embeddingCoverage prometheus.Histogram
	retrievals        *prometheus.CounterVec
	retrievedChunks   *prometheus.HistogramVec
	modelCalls        *prometheus.CounterVec
	modelLatency      *prometheus.HistogramVec
	quizScores        prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents that finished ingestion, by final status.",
		}, []string{"status"}),
		chunksIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Chunks processed during ingestion, by embedding outcome.",
		}, []string{"outcome"}),
		embeddingCoverage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_embedding_coverage_ratio",
			Help:      "Fraction of a document's chunks that received an embedding.",
			Buckets:   []float64{0, 0.25, 0.5, 0.75, 0.9, 0.99, 1},
		}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retriever calls, by mode and result.",
		}, []string{"mode", "result"}),
		retrievedChunks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_chunks",
			Help:      "Chunks returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}, []string{"mode"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Calls to the model server, by operation and result.",
		}, []string{"operation", "result"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of model server calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"operation"}),
		quizScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quiz_attempt_score",
			Help:      "Scores of graded quiz attempts.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsIngested,
		m.chunksIngested,
		m.embeddingCoverage,
		m.retrievals,
		m.retrievedChunks,
		m.modelCalls,
		m.modelLatency,
		m.quizScores,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveIngestion(status string, embedded, failed int, coverage float64) {
	if m == nil {
		return
	}
	m.documentsIngested.WithLabelValues(status).Inc()
	m.chunksIngested.WithLabelValues("embedded").Add(float64(embedded))
	m.chunksIngested.WithLabelValues("embedding_failed").Add(float64(failed))
	if status == "completed" {
		m.embeddingCoverage.Observe(coverage)
	}
}

func (m *Metrics) ObserveRetrieval(mode string, n int, err error) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(mode, result(err)).Inc()
	m.retrievedChunks.WithLabelValues(mode).Observe(float64(n))
}

func (m *Metrics) ObserveModelCall(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(operation, result(err)).Inc()
	m.modelLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveGrade(score int) {
	if m == nil {
		return
	}
	m.quizScores.Observe(float64(score))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

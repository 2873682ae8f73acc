// Package observability exposes Prometheus metrics for the question
// pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors
type Metrics struct {
	QuestionsTotal    *prometheus.CounterVec
	CompactionsTotal  *prometheus.CounterVec
	RetrievedPassages prometheus.Histogram
	AnswerLatency     prometheus.Histogram
	ActiveSessions    prometheus.Gauge
}

// NewMetrics registers collectors under namespace on the default registry
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		QuestionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions processed, by route and outcome.",
		}, []string{"route", "outcome"}),
		CompactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_compactions_total",
			Help:      "Conversation memory compactions, by outcome.",
		}, []string{"outcome"}),
		RetrievedPassages: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_passages",
			Help:      "Passages returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),
		AnswerLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_latency_seconds",
			Help:      "End-to-end latency of answering one question.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
	}
}

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

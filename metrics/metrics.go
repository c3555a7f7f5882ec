package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_ops_processed_total",
		Help: "Operations applied to a book, by operation type.",
	}, []string{"type"})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_events_emitted_total",
		Help: "Events produced by the matching algorithm, by kind.",
	}, []string{"kind"})

	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fenrir_match_latency_seconds",
		Help:    "Time spent applying one operation to a book.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 2, 16),
	})

	OutboxAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fenrir_outbox_append_failures_total",
		Help: "Events that could not be staged in the outbox.",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RecordsProcessed counts import records by final outcome:
	// created, merged, blocked, flagged, errored, noop.
	RecordsProcessed *prometheus.CounterVec
	ContactsCreated  prometheus.Counter
	MergeConflicts   prometheus.Counter
	ReviewQueued     prometheus.Counter
	LockWaits        prometheus.Counter
	BatchDuration    prometheus.Histogram
	RequestLatency   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RecordsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coalesce_records_processed_total",
			Help: "Import records processed, by outcome",
		}, []string{"outcome"}),
		ContactsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_contacts_created_total",
			Help: "New contacts created from import records",
		}),
		MergeConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_merge_conflicts_total",
			Help: "Records conflict-flagged for manual resolution",
		}),
		ReviewQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_review_queued_total",
			Help: "Records deferred to the human review queue",
		}),
		LockWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_contact_lock_waits_total",
			Help: "Times a record blocked waiting for a contact lock",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coalesce_batch_duration_seconds",
			Help:    "Wall time per import batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coalesce_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// RecordOutcome increments the per-outcome record counter.
func (m *Metrics) RecordOutcome(outcome string) {
	m.RecordsProcessed.WithLabelValues(outcome).Inc()
}

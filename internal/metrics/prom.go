// Package metrics provides Prometheus instrumentation for vector store
// operations and the realtime counter store shown on the dashboard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation status labels.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

var (
	// OpsTotal counts vector store operations by outcome.
	OpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vecstore_ops_total",
			Help: "Total number of vector store operations",
		},
		[]string{"op", "status"},
	)

	// OpDurationSeconds measures latency of vector store operations.
	OpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vecstore_op_duration_seconds",
			Help:    "Latency of vector store operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op"},
	)

	// SearchScannedRecords tracks how many records each search compared.
	SearchScannedRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vecstore_search_scanned_records",
			Help:    "Number of records scanned per brute-force search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// SearchSkippedRecords counts records skipped during scans by reason.
	SearchSkippedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vecstore_scan_skipped_records_total",
			Help: "Records skipped during scans",
		},
		[]string{"reason"},
	)

	// EmbeddingRequestsTotal counts embedding calls by provider and outcome.
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vecstore_embedding_requests_total",
			Help: "Total embedding requests",
		},
		[]string{"provider", "status"},
	)
)

// ObserveOp records the outcome and latency of an operation.
func ObserveOp(op, status string, start time.Time) {
	OpsTotal.WithLabelValues(op, status).Inc()
	OpDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Package metrics provides Prometheus metrics for camera sessions and the
// import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpcam_operations_total",
			Help: "Total number of camera operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gpcam_operation_duration_seconds",
			Help:    "Camera operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"op"},
	)

	transferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpcam_transfer_bytes_total",
			Help: "Bytes moved between host and camera",
		},
		[]string{"direction"},
	)

	sessionsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpcam_sessions_connected",
			Help: "Number of connected camera sessions",
		},
	)

	ledgerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpcam_ledger_transitions_total",
			Help: "Import ledger state transitions",
		},
		[]string{"to"},
	)

	archiveUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpcam_archive_uploads_total",
			Help: "Archive uploads by backend and status",
		},
		[]string{"backend", "status"},
	)
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Directions for RecordBytes.
const (
	Download = "download"
	Upload   = "upload"
)

// RecordOperation counts one finished camera operation.
func RecordOperation(op, outcome string, d time.Duration) {
	operationsTotal.WithLabelValues(op, outcome).Inc()
	operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func RecordBytes(direction string, n int) {
	if n > 0 {
		transferBytes.WithLabelValues(direction).Add(float64(n))
	}
}

func SessionConnected()    { sessionsConnected.Inc() }
func SessionDisconnected() { sessionsConnected.Dec() }

func RecordTransition(to string) {
	ledgerTransitions.WithLabelValues(to).Inc()
}

func RecordArchiveUpload(backend, status string) {
	archiveUploads.WithLabelValues(backend, status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics declares the Prometheus collectors exported by rexsync.
//
// Collectors register with the default registry on package init; serve
// exposes them on /metrics when a metrics address is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts REX requests by path and outcome
	// (ok, unauthorized, server_error, transport_error).
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rexsync_api_requests_total",
			Help: "Total number of requests sent to the REX API",
		},
		[]string{"path", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rexsync_api_request_duration_seconds",
			Help:    "Duration of REX API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rexsync_logins_total",
			Help: "Total number of REX login attempts",
		},
		[]string{"outcome"},
	)

	// SyncRunsTotal counts sync runs by mode (full, incremental, single)
	// and outcome (ok, error).
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rexsync_sync_runs_total",
			Help: "Total number of sync runs",
		},
		[]string{"mode", "outcome"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rexsync_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	// ListingsSavedTotal counts save attempts by result (saved, rejected).
	ListingsSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rexsync_listings_saved_total",
			Help: "Total number of listing save attempts",
		},
		[]string{"result"},
	)
)

// ObserveAPIRequest records one REX request.
func ObserveAPIRequest(path, outcome string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(path, outcome).Inc()
	APIRequestDuration.WithLabelValues(path).Observe(d.Seconds())
}

// ObserveSync records one sync run.
func ObserveSync(mode string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SyncRunsTotal.WithLabelValues(mode, outcome).Inc()
	SyncDuration.WithLabelValues(mode).Observe(d.Seconds())
}

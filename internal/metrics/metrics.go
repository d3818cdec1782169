// Package metrics exposes Prometheus counters and histograms for the
// dispatcher's five RPC operations and every store call they make.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RPCRequestsTotal counts dispatcher requests by operation and
	// outcome ("ok" or one of the error taxonomy codes, spec §7).
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objstore_rpc_requests_total",
			Help: "Total number of RPC requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RPCDuration times each operation end to end.
	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objstore_rpc_duration_seconds",
			Help:    "RPC handler duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// StoreCallsTotal counts individual blob/commit store calls by
	// backend, method and outcome.
	StoreCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objstore_store_calls_total",
			Help: "Total number of store calls by backend, method and outcome",
		},
		[]string{"backend", "method", "outcome"},
	)

	// StoreCallDuration times individual store calls.
	StoreCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objstore_store_call_duration_seconds",
			Help:    "Store call duration in seconds by backend and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "method"},
	)

	// StoreTimeoutsTotal counts store calls that hit store_timeout.
	StoreTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objstore_store_timeouts_total",
			Help: "Total number of store calls that exceeded store_timeout",
		},
		[]string{"backend", "method"},
	)

	// WorkbenchCacheBytes reports the blob cache's current byte usage.
	WorkbenchCacheBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "objstore_workbench_cache_bytes",
			Help: "Current approximate byte usage of the workbench blob cache",
		},
	)

	// SubscribersActive reports the number of connected subscribeCommits
	// WebSocket clients.
	SubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "objstore_subscribers_active",
			Help: "Number of currently connected subscribeCommits clients",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RPCRequestsTotal,
		RPCDuration,
		StoreCallsTotal,
		StoreCallDuration,
		StoreTimeoutsTotal,
		WorkbenchCacheBytes,
		SubscribersActive,
	)
}

// Handler returns the Prometheus scrape handler, mounted at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a single operation or store call.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Observer) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveVec records elapsed time to a labelled histogram vec.
func (t *Timer) ObserveVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

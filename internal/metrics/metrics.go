// Package metrics provides Prometheus instrumentation for s3gate.
//
// A single Metrics struct is constructed at startup and threaded through
// the components that observe the request pipeline (HTTP front, storage
// sweeper); each holds the collectors relevant to it rather than reaching
// into a global registry, so tests can construct an isolated instance.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector s3gate registers.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	HTTPErrors      *prometheus.CounterVec
	SweeperLastRun  prometheus.Gauge
	SweeperSwept    prometheus.Counter
	SweeperDuration prometheus.Histogram
}

// New creates a Metrics instance registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3gate_http_requests_total",
			Help: "Total HTTP requests handled, by operation and status code.",
		}, []string{"operation", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "s3gate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		HTTPErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3gate_http_errors_total",
			Help: "Total S3 error responses, by S3 error code.",
		}, []string{"code"}),
		SweeperLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3gate_sweeper_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last multipart-expiry sweep.",
		}),
		SweeperSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3gate_sweeper_uploads_swept_total",
			Help: "Total expired multipart uploads aborted by the sweeper.",
		}),
		SweeperDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "s3gate_sweeper_run_duration_seconds",
			Help:    "Duration of a single sweeper run across all buckets.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.HTTPErrors,
		m.SweeperLastRun,
		m.SweeperSwept,
		m.SweeperDuration,
	)
	return m
}

// Handler returns the Prometheus scrape handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one completed HTTP request against its classified
// S3 operation name, status code, and latency.
func (m *Metrics) RecordRequest(operation string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError increments the error counter for an S3 error code.
func (m *Metrics) RecordError(code string) {
	m.HTTPErrors.WithLabelValues(code).Inc()
}

// RecordSweeperRun records the outcome of one multipart-expiry sweep.
func (m *Metrics) RecordSweeperRun(duration time.Duration, swept int) {
	m.SweeperDuration.Observe(duration.Seconds())
	m.SweeperSwept.Add(float64(swept))
	m.SweeperLastRun.SetToCurrentTime()
}

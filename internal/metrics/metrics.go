// Package metrics exposes Prometheus instrumentation for the dealer API and
// the console.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metric vectors served at /metrics.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ExportsTotal        *prometheus.CounterVec
	MutationsTotal      *prometheus.CounterVec
	ConsoleSessions     prometheus.Gauge
}

// New creates a Collector with its own registry under the given namespace.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of exports by surface, format and outcome",
		}, []string{"surface", "format", "status"}),
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_mutations_total",
			Help:      "Total number of record mutations by collection and action",
		}, []string{"collection", "action"}),
		ConsoleSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "console_sessions",
			Help:      "Number of live console sessions",
		}),
	}

	reg.MustRegister(c.HTTPRequestsTotal, c.HTTPRequestDuration, c.ExportsTotal, c.MutationsTotal, c.ConsoleSessions)
	return c
}

// Handler returns an HTTP handler that serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordExport counts an export attempt.
func (c *Collector) RecordExport(surface, format string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.ExportsTotal.WithLabelValues(surface, format, status).Inc()
}

// RecordMutation counts a successful record mutation.
func (c *Collector) RecordMutation(collection, action string) {
	if c == nil {
		return
	}
	c.MutationsTotal.WithLabelValues(collection, action).Inc()
}

// SetConsoleSessions sets the live session gauge.
func (c *Collector) SetConsoleSessions(n int) {
	if c == nil {
		return
	}
	c.ConsoleSessions.Set(float64(n))
}

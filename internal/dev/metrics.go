package dev

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath serves the dev server metrics in Prometheus text format.
const MetricsPath = "/_wasmpack/metrics"

// Metrics holds the dev server collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	rebuilds *prometheus.CounterVec
	duration prometheus.Histogram
	reloads  prometheus.Counter
	clients  prometheus.Gauge
}

// NewMetrics registers the dev server collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasmpack_dev_rebuilds_total",
			Help: "Builds run by the dev server, including the startup build, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wasmpack_dev_rebuild_duration_seconds",
			Help:    "Time spent rebuilding the pack directory.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wasmpack_dev_reloads_total",
			Help: "Reload broadcasts sent to browsers.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wasmpack_dev_clients",
			Help: "Connected reload clients.",
		}),
	}
	m.registry.MustRegister(m.rebuilds, m.duration, m.reloads, m.clients)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) rebuilt(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.rebuilds.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) reloaded() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

func (m *Metrics) setClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

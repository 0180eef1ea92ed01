// Package metrics holds the Prometheus collectors of the scan pipeline on a
// private registry exposed at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Relay latency buckets in milliseconds; verification may take seconds.
	latencyBuckets = []float64{
		25, 50, 100, 250,
		500, 1000, 2500,
		5000, 10000, 15000, 30000,
	}

	ScansTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkscan_scans_total",
			Help: "Scans run, by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	PatternsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkscan_patterns_total",
			Help: "Patterns reported, by category and source",
		},
		[]string{"category", "source"},
	)

	RelayRequestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkscan_relay_requests_total",
			Help: "Relay calls, by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	RelayLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "darkscan_relay_latency_ms",
			Help:    "Relay call latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"endpoint"},
	)

	MonitorCyclesTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkscan_monitor_cycles_total",
			Help: "Monitoring cycles, by interval and outcome",
		},
		[]string{"interval", "outcome"},
	)

	ActiveSessions = promauto.With(registerer).NewGauge(
		prometheus.GaugeOpts{
			Name: "darkscan_active_sessions",
			Help: "Detection sessions currently open",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Registry exposes the private registry, mainly for tests.
func Registry() *prometheus.Registry { return registry }

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveRelay records one relay call.
func ObserveRelay(endpoint, outcome string, elapsed time.Duration) {
	RelayRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	RelayLatency.WithLabelValues(endpoint).Observe(float64(elapsed.Milliseconds()))
}

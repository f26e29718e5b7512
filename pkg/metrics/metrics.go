// Package metrics defines the Prometheus metric collectors used by the
// watcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the watcher.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HeartbeatsTotal      *prometheus.CounterVec
	ScanCyclesTotal      *prometheus.CounterVec
	ScanDuration         prometheus.Histogram
	StaleEntitiesFound   prometheus.Histogram
	ReportsTotal         *prometheus.CounterVec
	EntitiesEvicted      prometheus.Counter
	StaleEventsPublished *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		HeartbeatsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heartbeats_total",
				Help: "Heartbeats received by store outcome (ok, error).",
			},
			[]string{"status"},
		),
		ScanCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_cycles_total",
				Help: "Scan cycles by outcome (empty, evicted, query_error, report_error, evict_error).",
			},
			[]string{"outcome"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_cycle_duration_seconds",
				Help:    "Duration of one query/report/evict cycle.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),
		StaleEntitiesFound: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stale_batch_size",
				Help:    "Number of stale entities found per non-empty scan cycle.",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stale_reports_total",
				Help: "Stale batch deliveries to the logging API by status (success, failure).",
			},
			[]string{"status"},
		),
		EntitiesEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "entities_evicted_total",
				Help: "Heartbeat records removed after a successful report.",
			},
		),
		StaleEventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stale_events_published_total",
				Help: "Stale-entity events published to Kafka by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.HeartbeatsTotal,
		m.ScanCyclesTotal,
		m.ScanDuration,
		m.StaleEntitiesFound,
		m.ReportsTotal,
		m.EntitiesEvicted,
		m.StaleEventsPublished,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

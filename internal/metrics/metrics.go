// Package metrics provides Prometheus metrics for the demo app.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "demo_app"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1, 3, 5, 7, 10},
		},
		[]string{"method", "route", "status_code"},
	)
)

// Simulated business gauges
var (
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of active connections",
		},
	)

	BusinessValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "business_value",
			Help:      "Custom business metric for demonstration",
		},
	)

	// SimulationsTotal counts calls to the simulation endpoints by type.
	SimulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_total",
			Help:      "Total simulation requests",
		},
		[]string{"type"},
	)
)

// Host metrics, sampled by the metrics collector
var (
	CPUUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_usage",
			Help:      "Host CPU usage percentage",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage",
			Help:      "Host memory usage percentage",
		},
	)
)

// Alert metrics
var (
	// AlertsReceivedTotal is a lifetime counter; the ledger gauges below are windowed.
	AlertsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "received_total",
			Help:      "Total alert notifications received, by status",
		},
		[]string{"status"},
	)

	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "webhook_requests_total",
			Help:      "Total webhook deliveries, by transport and result",
		},
		[]string{"transport", "result"},
	)

	LedgerAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "retained",
			Help:      "Alerts currently retained in the ledger window, by status",
		},
		[]string{"status"},
	)

	LedgerCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "ledger_capacity",
			Help:      "Maximum number of alerts the ledger retains",
		},
	)

	ArchiveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "archive_errors_total",
			Help:      "Total failures writing alerts to the history archive",
		},
	)

	PublishErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "publish_errors_total",
			Help:      "Total failures publishing alerts to the message bus",
		},
	)
)

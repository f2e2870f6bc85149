package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service collectors and the registry they are exposed from.
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	sweepRemoved *prometheus.CounterVec
}

// NewMetrics initializes collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helpdesk",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "helpdesk",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helpdesk",
				Name:      "http_errors_total",
				Help:      "Error responses by domain error code",
			},
			[]string{"method", "route", "code"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helpdesk",
				Name:      "ticket_transitions_total",
				Help:      "Ticket lifecycle transitions by outcome",
			},
			[]string{"transition", "outcome"},
		),
		sweepRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helpdesk",
				Name:      "maintenance_items_total",
				Help:      "Items touched by the maintenance sweep",
			},
			[]string{"task"},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.errors,
		m.transitions,
		m.sweepRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, route, code).Inc()
}

// RecordTransition counts one lifecycle attempt; outcome is "ok" or an error code.
func (m *Metrics) RecordTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, outcome).Inc()
}

// RecordSweep adds n to the maintenance counter of task.
func (m *Metrics) RecordSweep(task string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepRemoved.WithLabelValues(task).Add(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

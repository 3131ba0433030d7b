package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the process on its own registry,
// so tests can build as many instances as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SignalsTotal *prometheus.CounterVec

	ExchangeRequestsTotal   *prometheus.CounterVec
	ExchangeRequestDuration *prometheus.HistogramVec
}

// Signal outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests in flight",
			},
		),
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_signals_total",
				Help: "Webhook signals by outcome and side",
			},
			[]string{"outcome", "side"},
		),
		ExchangeRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_api_requests_total",
				Help: "Total number of exchange API requests",
			},
			[]string{"endpoint", "status"},
		),
		ExchangeRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "exchange_api_request_duration_seconds",
				Help: "Duration of exchange API requests in seconds",
			},
			[]string{"endpoint"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SignalsTotal,
		m.ExchangeRequestsTotal,
		m.ExchangeRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSignal counts one finished webhook run
func (m *Metrics) RecordSignal(outcome, side string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(outcome, side).Inc()
}

// ObserveExchangeRequest records one outbound exchange call
func (m *Metrics) ObserveExchangeRequest(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.ExchangeRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveHTTPRequest records one inbound request
func (m *Metrics) ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// InFlight adjusts the in-flight gauge by delta
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Add(delta)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ordersCreated        *prometheus.CounterVec
	paymentConfirmations *prometheus.CounterVec
	verifications        *prometheus.CounterVec
	webhookEvents        *prometheus.CounterVec
	alerts               *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bwitty",
			Name:      "orders_created_total",
			Help:      "Orders created, by payment provider.",
		}, []string{"provider"}),
		paymentConfirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bwitty",
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmation attempts, by source and whether they changed the order.",
		}, []string{"source", "result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bwitty",
			Name:      "payment_verifications_total",
			Help:      "Gateway verification calls, by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bwitty",
			Name:      "webhook_events_total",
			Help:      "Gateway webhook deliveries, by event and result.",
		}, []string{"event", "result"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bwitty",
			Name:      "operator_alerts_total",
			Help:      "Conditions needing operator attention, by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bwitty",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bwitty",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersCreated,
		m.paymentConfirmations,
		m.verifications,
		m.webhookEvents,
		m.alerts,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OrderCreated(provider string) {
	m.ordersCreated.WithLabelValues(provider).Inc()
}

// PaymentConfirmation records a confirmation attempt from source.
func (m *Metrics) PaymentConfirmation(source string, applied bool) {
	result := "noop"
	if applied {
		result = "applied"
	}
	m.paymentConfirmations.WithLabelValues(source, result).Inc()
}

// Verification records a verify outcome: success, failed, unreachable or amount_mismatch.
func (m *Metrics) Verification(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WebhookEvent(event, result string) {
	m.webhookEvents.WithLabelValues(event, result).Inc()
}

// Alert counts a condition that was also logged with alert=true.
func (m *Metrics) Alert(kind string) {
	m.alerts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

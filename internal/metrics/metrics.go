// Package metrics exposes the Prometheus instruments of the service. Every
// method is safe on a nil *Metrics so callers can run without instrumentation.
package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "unlockpay"

type Metrics struct {
	registry *prometheus.Registry

	transactionsTotal     *prometheus.CounterVec
	balanceMutationsTotal *prometheus.CounterVec
	webhooksTotal         *prometheus.CounterVec
	gatewayRequestsTotal  *prometheus.CounterVec
	gatewayLatency        prometheus.Histogram
	notificationsTotal    *prometheus.CounterVec
	notificationsDropped  prometheus.Counter
	httpRequestsTotal     *prometheus.CounterVec
	httpLatency           *prometheus.HistogramVec
}

// New registers every instrument on a private registry along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "transactions_total",
				Help:      "Transaction writes partitioned by item type and resulting status.",
			},
			[]string{"item_type", "status"},
		),
		balanceMutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "balance_mutations_total",
				Help:      "Committed balance history entries by category.",
			},
			[]string{"category"},
		),
		webhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "webhooks_total",
				Help:      "Gateway notifications by handling result.",
			},
			[]string{"result"},
		),
		gatewayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "checkout_requests_total",
				Help:      "Checkout requests sent to the payment gateway by result.",
			},
			[]string{"result"},
		),
		gatewayLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "checkout_duration_seconds",
				Help:      "Latency of checkout requests.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notification",
				Name:      "deliveries_total",
				Help:      "Notification deliveries by channel and result.",
			},
			[]string{"channel", "result"},
		),
		notificationsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notification",
				Name:      "dropped_total",
				Help:      "Notifications dropped because the queue was full or closed.",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the registry the instruments are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) }
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
}

func (m *Metrics) ObserveTransaction(itemType, status string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(itemType, status).Inc()
}

func (m *Metrics) ObserveBalanceMutation(category string) {
	if m == nil {
		return
	}
	m.balanceMutationsTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCheckout(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequestsTotal.WithLabelValues(result(err)).Inc()
	m.gatewayLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveNotification(channel string, err error) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel, result(err)).Inc()
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}

func (m *Metrics) ObserveHTTP(method, route, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

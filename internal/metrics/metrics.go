package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the settlement core's Prometheus collectors. Each instance
// carries its own registry so tests can construct them freely.
type Metrics struct {
	registry *prometheus.Registry

	OrdersFinalized prometheus.Counter
	PaymentSessions *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.OrdersFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "orders_finalized_total",
		Help:      "Orders created by checkout, excluding idempotent replays.",
	})
	m.PaymentSessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "payment_sessions_total",
		Help:      "Hosted checkout sessions requested, by provider.",
	}, []string{"provider"})
	m.WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "webhook_events_total",
		Help:      "Provider webhook events received, by type and outcome.",
	}, []string{"type", "outcome"})

	m.registry.MustRegister(m.OrdersFinalized, m.PaymentSessions, m.WebhookEvents)
	return m
}

// Handler serves the /metrics scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

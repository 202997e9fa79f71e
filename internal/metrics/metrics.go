// Package metrics registers the Prometheus collectors used across the platform.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores the collectors shared by services.
type Metrics struct {
	WebhookUpdates   *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	OrdersCreated    prometheus.Counter
	OrderTransitions *prometheus.CounterVec
	BotWorkers       prometheus.Gauge
	BotRestarts      *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
}

var (
	regOnce  sync.Once
	instance *Metrics
)

// Registry builds and registers the metrics singleton with the given namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		instance = &Metrics{
			WebhookUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_updates_total",
				Help:      "Inbound provider updates by routing outcome.",
			}, []string{"outcome"}),
			ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Bot API calls by method and status.",
			}, []string{"method", "status"}),
			ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Latency distribution of Bot API calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_created_total",
				Help:      "Orders accepted through the external path.",
			}),
			OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_transitions_total",
				Help:      "Order status transitions by target status and outcome.",
			}, []string{"to", "outcome"}),
			BotWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bot_workers",
				Help:      "Currently supervised bot workers.",
			}),
			BotRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bot_worker_restarts_total",
				Help:      "Bot worker restarts by instance.",
			}, []string{"instance_id"}),
			Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_notifications_total",
				Help:      "Owner notifications by outcome.",
			}, []string{"outcome"}),
		}

		prometheus.MustRegister(
			instance.WebhookUpdates,
			instance.ProviderCalls,
			instance.ProviderLatency,
			instance.OrdersCreated,
			instance.OrderTransitions,
			instance.BotWorkers,
			instance.BotRestarts,
			instance.Notifications,
		)
	})
	return instance
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Fan-out metrics
	NotificationsEnqueued prometheus.Counter
	EnqueueFailures       prometheus.Counter
	RecipientsPerRequest  prometheus.Histogram
	ZeroRecipientRequests *prometheus.CounterVec

	// Delivery worker metrics
	DeliveriesSent   *prometheus.CounterVec
	DeliveriesFailed *prometheus.CounterVec
	DeliveryLatency  prometheus.Histogram

	// Store metrics
	StoreOperations *prometheus.CounterVec
}

// New creates and registers all application metrics under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		NotificationsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_enqueued_total",
			Help:      "Total number of individual notifications accepted by the queue",
		}),
		EnqueueFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueue_failures_total",
			Help:      "Total number of per-recipient enqueue failures",
		}),
		RecipientsPerRequest: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recipients_per_request",
			Help:      "Resolved recipient count per send request",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		ZeroRecipientRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_recipient_requests_total",
			Help:      "Send requests whose addressing mode matched nobody",
		}, []string{"mode"}),
		DeliveriesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_sent_total",
			Help:      "Notifications delivered by the worker",
		}, []string{"channel"}),
		DeliveriesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_failed_total",
			Help:      "Notification deliveries that failed",
		}, []string{"channel"}),
		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent delivering one notification",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of store operations",
		}, []string{"operation", "status"}),
	}
}

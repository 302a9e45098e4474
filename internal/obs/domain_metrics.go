package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by final outcome.
	CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pasar_checkout_total",
		Help: "Count of checkout attempts by outcome.",
	}, []string{"result"})

	// OrderItemSubmitTotal counts per-line item submissions.
	OrderItemSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pasar_order_item_submit_total",
		Help: "Count of order item submissions by outcome.",
	}, []string{"result"})

	// CheckoutDuration records end-to-end checkout latency.
	CheckoutDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pasar_checkout_duration_seconds",
		Help:    "End-to-end checkout latency in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// CompensationEnqueued counts order cleanup tasks scheduled.
	CompensationEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pasar_compensation_enqueued_total",
		Help: "Count of order cleanup tasks enqueued.",
	})

	// CompensationCompleted counts order cleanup tasks that succeeded.
	CompensationCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pasar_compensation_completed_total",
		Help: "Count of order cleanup tasks completed.",
	})
)

// MustRegisterDomainMetrics registers the checkout collectors exactly once.
func MustRegisterDomainMetrics(reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			CheckoutTotal,
			OrderItemSubmitTotal,
			CheckoutDuration,
			CompensationEnqueued,
			CompensationCompleted,
		)
	})
}

package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	// BreakerState exposes the state machine position per guarded target.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pasar_breaker_state",
		Help: "Breaker state per target: 0=closed, 1=open, 2=half_open.",
	}, []string{"target"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pasar_breaker_transition_total",
		Help: "Breaker state transitions by target and edge.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pasar_breaker_open_total",
		Help: "Times a breaker tripped open per target.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}

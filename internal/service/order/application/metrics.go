// internal/service/order/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted      = "completed"
	outcomeBusinessFailed = "business_failed"
	outcomeTransient      = "transient_failed"
	outcomeDuplicate      = "duplicate"
	outcomePoison         = "poison"
)

var sagaOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "order_saga_outcomes_total",
	Help: "Order fulfillment saga outcomes by terminal state.",
}, []string{"outcome"})

func observeSagaOutcome(outcome string) {
	sagaOutcomes.WithLabelValues(outcome).Inc()
}

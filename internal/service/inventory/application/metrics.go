package application

import (
	"demoshop/internal/pkg/apperr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "inventory_operations_total",
	Help: "Inventory ledger operations by op and result kind.",
}, []string{"op", "result"})

func observeOperation(op string, err error) {
	result := "ok"
	if err != nil {
		result = apperr.KindOf(err).String()
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}

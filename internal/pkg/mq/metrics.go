package mq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dltPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mq_dead_letters_published_total",
	Help: "Messages handed over to the dead letter topic, by failure reason.",
}, []string{"reason"})

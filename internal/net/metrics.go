package net

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sharedboard",
			Subsystem: "coordinator",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{"result"},
	)
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sharedboard",
			Subsystem: "coordinator",
			Name:      "deliveries_total",
			Help:      "Fan-out callback deliveries by kind and success.",
		},
		[]string{"kind", "success"},
	)
	membersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sharedboard",
			Subsystem: "coordinator",
			Name:      "members",
			Help:      "Registered session members.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(loginsTotal, deliveriesTotal, membersGauge)
	})
}

func recordLogin(result string) {
	RegisterMetrics()
	loginsTotal.WithLabelValues(result).Inc()
}

func recordDelivery(kind string, success bool) {
	RegisterMetrics()
	deliveriesTotal.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

func recordMembers(n int) {
	RegisterMetrics()
	membersGauge.Set(float64(n))
}

package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"marketbot/internal/service/inventory/domain"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inventory",
		Name:      "operations_total",
		Help:      "Inventory engine operations by operation and outcome kind.",
	}, []string{"op", "outcome"})

	lockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inventory",
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting for the ledger critical-section lock.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 3, 5},
	}, []string{"op"})

	lockTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inventory",
		Name:      "lock_timeouts_total",
		Help:      "Lock acquisitions that gave up after the configured timeout.",
	}, []string{"op"})
)

func observeResult(op string, res domain.Result, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case !res.OK:
		outcome = string(res.Kind)
	}
	operationsTotal.WithLabelValues(op, outcome).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики операций леджера абонементов. Лейбл op: reserve|confirm|release.
var (
	LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groomsalon_ledger_ops_total",
		Help: "Successful subscription ledger operations.",
	}, []string{"op"})

	LedgerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groomsalon_ledger_failures_total",
		Help: "Rejected subscription ledger operations.",
	}, []string{"op", "reason"})

	SweepUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groomsalon_status_sweep_updated_total",
		Help: "Subscriptions moved to expired/exhausted by the sweep.",
	})

	OrphansReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groomsalon_orphan_links_released_total",
		Help: "Reserved links released by the reconciliation pass.",
	})
)

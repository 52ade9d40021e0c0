package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_reservations_total",
		Help: "Reservation attempts by terminal result.",
	}, []string{"result"})

	lockDegradationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_lock_degradations_total",
		Help: "Times the distributed lock was skipped and the call degraded to the store path alone.",
	})

	optimisticConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_optimistic_conflicts_total",
		Help: "Version-check failures observed by the optimistic reservation path.",
	})

	reapedReservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_reaped_reservations_total",
		Help: "Pending reservations expired by the background reaper.",
	})
)

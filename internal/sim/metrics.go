package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSubmittedTotal tracks submitted orders by side.
	OrdersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_broker_orders_submitted_total",
			Help: "Total number of simulated orders submitted",
		},
		[]string{"side"},
	)

	// FillsTotal tracks accepted fills by fill status.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_broker_fills_total",
			Help: "Total number of simulated fills",
		},
		[]string{"fill_status"},
	)

	// CancelsTotal tracks completed cancellations.
	CancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_broker_cancels_total",
		Help: "Total number of simulated orders cancelled",
	})

	// FillRejectionsTotal tracks fill evaluations that produced no fill.
	FillRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_broker_fill_rejections_total",
			Help: "Total number of fill evaluations rejected",
		},
		[]string{"reason"},
	)
)

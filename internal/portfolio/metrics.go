package portfolio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsTotal counts ledger rows by event type.
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_ledger_rows_total",
			Help: "Total number of ledger rows produced, by event",
		},
		[]string{"event"},
	)

	// EquityGauge tracks the most recently computed final equity.
	EquityGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polymarket_ledger_equity",
			Help: "Final equity of the most recent ledger computation",
		},
	)

	// FeesGauge tracks accumulated fees of the most recent computation.
	FeesGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polymarket_ledger_fees",
			Help: "Total fees of the most recent ledger computation",
		},
	)
)

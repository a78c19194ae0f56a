package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsEmittedTotal counts intents returned by strategies.
	IntentsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_strategy_intents_total",
			Help: "Total number of order intents emitted by strategies",
		},
		[]string{"strategy", "action"},
	)

	// ArbOpportunitiesTotal counts modeled mispricings recorded by arb_watch.
	ArbOpportunitiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_strategy_arb_opportunities_total",
		Help: "Total number of modeled arbitrage opportunities recorded",
	})

	// ArbRejectionsTotal counts candidate mispricings passed on, by reason.
	ArbRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_strategy_arb_rejections_total",
			Help: "Total number of arbitrage candidates rejected",
		},
		[]string{"reason"},
	)

	// ArbNetProfitBPS tracks modeled net profit after fees in basis points.
	ArbNetProfitBPS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_strategy_arb_net_profit_bps",
		Help:    "Modeled arbitrage net profit after fees in basis points",
		Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
	})
)

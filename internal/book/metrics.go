package book

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AppliesTotal tracks accepted book mutations by event type.
	AppliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_book_applies_total",
			Help: "Total number of events applied to L2 books",
		},
		[]string{"event_type"},
	)

	// DeltaSkipsTotal tracks skipped delta entries by reason.
	DeltaSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_book_delta_skips_total",
			Help: "Total number of delta entries skipped as invalid",
		},
		[]string{"reason"},
	)

	// SnapshotsTracked tracks the number of book snapshots in the mirror.
	SnapshotsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_book_snapshots_tracked",
		Help: "Number of book snapshots tracked in the mirror",
	})
)

package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks completed runs by mode and quality.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_runner_runs_total",
		Help: "Total number of completed runs",
	}, []string{"mode", "quality"})

	// EventsProcessedTotal tracks events through the engine pipeline.
	EventsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_runner_events_total",
		Help: "Total number of events processed by run engines",
	})

	// TimelineRowsTotal tracks best-bid/ask rows recorded.
	TimelineRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_runner_timeline_rows_total",
		Help: "Total number of timeline rows recorded",
	})

	// MalformedIntentsTotal tracks strategy intents dropped at validation.
	MalformedIntentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_runner_malformed_intents_total",
		Help: "Total number of malformed strategy intents dropped",
	})

	// RunDurationSeconds tracks wall-clock replay duration.
	RunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_runner_duration_seconds",
		Help:    "Wall-clock duration of replay runs",
		Buckets: prometheus.DefBuckets,
	})
)

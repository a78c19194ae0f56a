package tape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesRecordedTotal tracks raw frames written to tape.
	FramesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_tape_frames_recorded_total",
		Help: "Total number of raw WS frames written to tape",
	})

	// EventsRecordedTotal tracks normalized events written to tape.
	EventsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_tape_events_recorded_total",
		Help: "Total number of normalized events written to tape",
	})

	// NormalizeWarningsTotal tracks frames that produced warnings.
	NormalizeWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_tape_normalize_warnings_total",
		Help: "Total number of normalization warnings while recording",
	})

	// LinesSkippedTotal tracks tape lines the loader skipped.
	LinesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_tape_lines_skipped_total",
		Help: "Total number of tape lines skipped while loading",
	})

	// EventsLoadedTotal tracks events loaded from tapes.
	EventsLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_tape_events_loaded_total",
		Help: "Total number of events loaded from tapes",
	})
)

package shadow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesConsumedTotal tracks live frames fed into the engine.
	FramesConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_shadow_frames_consumed_total",
		Help: "Total number of live frames consumed by shadow runs",
	})

	// StallExitsTotal tracks runs ended by the stall kill-switch.
	StallExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_shadow_stall_exits_total",
		Help: "Total number of shadow runs ended by the ws stall kill-switch",
	})
)

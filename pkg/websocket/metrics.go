package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// FramesReceivedTotal tracks raw frames received.
	FramesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_frames_received_total",
		Help: "Total number of WebSocket frames received",
	})

	// RecvTimeoutsTotal tracks recv timeouts that triggered a keepalive.
	RecvTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_recv_timeouts_total",
		Help: "Total number of recv timeouts answered with a keepalive ping",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// ReconnectsTotal tracks successful reconnections.
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_reconnects_total",
		Help: "Total number of successful WebSocket reconnections",
	})

	// SubscriptionCount tracks subscribed asset IDs.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_ws_subscription_count",
		Help: "Number of subscribed asset IDs",
	})

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)

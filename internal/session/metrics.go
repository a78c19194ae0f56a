package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_session_sessions_total",
		Help: "Total number of sessions created",
	})

	ActiveSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_session_active_sessions",
		Help: "Sessions currently open in the manager",
	})

	EventsSteppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_session_events_stepped_total",
		Help: "Total number of events stepped through across sessions",
	})

	UserActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_session_user_actions_total",
		Help: "Total number of user actions by action name",
	}, []string{"action"})
)

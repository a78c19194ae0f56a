// Package healthprobe provides liveness and readiness endpoints for the
// long-running services. Liveness is unconditional; readiness can be
// gated on named startup components (the market feed, storage) and
// reports 503 with the pending set until every one has come up.
package healthprobe

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime time.Time

	mu      sync.Mutex
	pending map[string]struct{}
	ready   bool
}

// New creates a HealthChecker. Components, when given, are startup
// dependencies that must each report up before the probe does; without
// any, readiness is a plain flag driven by SetReady.
func New(components ...string) *HealthChecker {
	pending := make(map[string]struct{}, len(components))
	for _, c := range components {
		pending[c] = struct{}{}
	}
	return &HealthChecker{
		startTime: time.Now(),
		pending:   pending,
	}
}

// SetReady force-sets overall readiness, bypassing component gating.
// Marking ready clears any still-pending components; marking not ready
// is how shutdown drains traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
	if ready {
		h.pending = map[string]struct{}{}
	}
}

// SetComponentReady marks one startup component as up. Readiness flips
// once every registered component has reported.
func (h *HealthChecker) SetComponentReady(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, name)
	if len(h.pending) == 0 {
		h.ready = true
	}
}

func (h *HealthChecker) state() (bool, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending := make([]string, 0, len(h.pending))
	for c := range h.pending {
		pending = append(pending, c)
	}
	sort.Strings(pending)
	return h.ready, pending
}

// HealthResponse is the payload for both probe endpoints.
type HealthResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	Message       string   `json:"message,omitempty"`
	Pending       []string `json:"pending,omitempty"`
}

// Health returns an HTTP handler for liveness checks. It reports 200 as
// long as the process serves requests, ready or not.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respond(w, http.StatusOK, HealthResponse{
			Status:        "healthy",
			UptimeSeconds: time.Since(h.startTime).Seconds(),
		})
	}
}

// Ready returns an HTTP handler for readiness checks: 200 once the
// service is up, 503 with the pending components before that.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready, pending := h.state()
		if !ready {
			h.respond(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "service is starting",
				Pending: pending,
			})
			return
		}

		h.respond(w, http.StatusOK, HealthResponse{
			Status:        "ready",
			UptimeSeconds: time.Since(h.startTime).Seconds(),
		})
	}
}

func (h *HealthChecker) respond(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

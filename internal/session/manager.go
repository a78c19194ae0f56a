package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/tape"
	"github.com/mselser95/polymarket-sim/pkg/cache"
)

// Tape cache defaults. Cost is measured in events, so the budget caps
// the total number of cached tape events across all tapes.
const (
	defaultTapeCacheEvents = 1 << 20
	defaultTapeTTL         = 30 * time.Minute
	tapeCacheCounters      = 10_000
	tapeCacheBuffers       = 64
)

// Options are the per-session knobs Open applies.
type Options struct {
	StartingCash decimal.Decimal
	FeeRateBps   int
	MarkMethod   string
	StrictBooks  bool
}

// ManagerConfig holds manager configuration.
type ManagerConfig struct {
	// TapeCacheEvents caps the total cached tape events. Zero means the
	// default.
	TapeCacheEvents int64
	// TapeTTL is how long a cached tape stays warm. Zero means the
	// default.
	TapeTTL time.Duration
	Logger  *zap.Logger
}

// Manager hands out sessions over a shared tape cache, so repeated
// sessions on the same tape skip the reload. The manager is safe for
// concurrent use; the sessions it returns are not, and callers
// serialize access per session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	tapes    cache.Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewManager creates a session manager with a ristretto-backed tape
// cache.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxEvents := cfg.TapeCacheEvents
	if maxEvents <= 0 {
		maxEvents = defaultTapeCacheEvents
	}
	ttl := cfg.TapeTTL
	if ttl <= 0 {
		ttl = defaultTapeTTL
	}

	tapes, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: tapeCacheCounters,
		MaxCost:     maxEvents,
		BufferItems: tapeCacheBuffers,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create tape cache: %w", err)
	}

	return &Manager{
		sessions: map[string]*Session{},
		tapes:    tapes,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

// Open loads the tape (from cache when warm), creates a session with a
// fresh id and registers it.
func (m *Manager) Open(tapeDir string, opts *Options) (*Session, error) {
	if opts == nil {
		opts = &Options{}
	}

	tp, err := m.loadTape(tapeDir)
	if err != nil {
		return nil, err
	}

	s, err := New(&Config{
		Tape:         tp,
		StartingCash: opts.StartingCash,
		FeeRateBps:   opts.FeeRateBps,
		MarkMethod:   opts.MarkMethod,
		StrictBooks:  opts.StrictBooks,
		Logger:       m.logger,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	open := len(m.sessions)
	m.mu.Unlock()
	ActiveSessionsGauge.Set(float64(open))

	return s, nil
}

// loadTape returns the cached tape for dir or loads and caches it. The
// cached value is shared between sessions; tapes are read-only after
// load.
func (m *Manager) loadTape(dir string) (*tape.Tape, error) {
	if v, ok := m.tapes.Get(dir); ok {
		if tp, ok := v.(*tape.Tape); ok {
			return tp, nil
		}
	}

	tp, err := tape.Load(dir, m.logger)
	if err != nil {
		return nil, err
	}
	m.tapes.SetWithCost(dir, tp, int64(len(tp.Events)), m.ttl)
	return tp, nil
}

// Get returns a registered session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close deregisters a session. It reports whether the id was known.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	open := len(m.sessions)
	m.mu.Unlock()

	if ok {
		ActiveSessionsGauge.Set(float64(open))
		m.logger.Info("session-closed", zap.String("session-id", id))
	}
	return ok
}

// List returns the registered session ids, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown drops every session and releases the tape cache.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	ActiveSessionsGauge.Set(0)
	m.tapes.Close()
}

package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a read-only view of one book's top of book plus depth,
// published by the run loop and consumed by HTTP handlers.
type Snapshot struct {
	AssetID     string           `json:"asset_id"`
	BestBid     *decimal.Decimal `json:"best_bid"`
	BestAsk     *decimal.Decimal `json:"best_ask"`
	Bids        []Level          `json:"bids"`
	Asks        []Level          `json:"asks"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Mirror holds the latest snapshot per asset behind an RWMutex so that
// observers can read live book state without touching the single-threaded
// run loop's books.
type Mirror struct {
	mu    sync.RWMutex
	books map[string]Snapshot
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		books: make(map[string]Snapshot),
	}
}

// Publish stores the current top of book and depth for the asset. Called
// by the run loop after applying an event; depth is the number of levels
// to retain per side.
func (m *Mirror) Publish(b *Book, depth int) {
	snap := Snapshot{
		AssetID:     b.AssetID(),
		BestBid:     b.BestBid(),
		BestAsk:     b.BestAsk(),
		Bids:        b.TopBids(depth),
		Asks:        b.TopAsks(depth),
		LastUpdated: time.Now(),
	}

	m.mu.Lock()
	m.books[b.AssetID()] = snap
	SnapshotsTracked.Set(float64(len(m.books)))
	m.mu.Unlock()
}

// Get returns the snapshot for one asset.
func (m *Mirror) Get(assetID string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.books[assetID]
	return snap, ok
}

// All returns a copy of every tracked snapshot.
func (m *Mirror) All() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Snapshot, len(m.books))
	for id, snap := range m.books {
		out[id] = snap
	}
	return out
}

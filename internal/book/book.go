package book

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Level is one price level of an L2 book side.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Book is the per-asset L2 state machine. It is rebuilt from "book"
// snapshots and mutated by "price_change" deltas. Sizes are exact
// decimals; prices are keyed by their canonical decimal string so that
// "0.50" and "0.5" address the same level. Not safe for concurrent use;
// a Book is owned by exactly one run loop.
type Book struct {
	assetID     string
	strict      bool
	logger      *zap.Logger
	bids        map[string]Level
	asks        map[string]Level
	initialized bool
	warnings    []string
}

// Config holds book configuration.
type Config struct {
	AssetID string
	// Strict makes a delta before the first snapshot an error instead of
	// a logged skip.
	Strict bool
	Logger *zap.Logger
}

// New creates an empty book for one asset.
func New(cfg *Config) *Book {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Book{
		assetID: cfg.AssetID,
		strict:  cfg.Strict,
		logger:  logger,
		bids:    make(map[string]Level),
		asks:    make(map[string]Level),
	}
}

// AssetID returns the asset this book tracks.
func (b *Book) AssetID() string {
	return b.assetID
}

// Initialized reports whether the first snapshot has been applied.
func (b *Book) Initialized() bool {
	return b.initialized
}

// Warnings returns the per-delta issues skipped so far, in order.
func (b *Book) Warnings() []string {
	return b.warnings
}

// Apply applies one normalized event to the book. It returns true when the
// book accepted the event: a snapshot always counts, a price_change counts
// when at least one of its entries was validly dispatched. Events that do
// not affect books return false.
func (b *Book) Apply(ev *types.Event) (bool, error) {
	switch ev.EventType {
	case types.EventTypeBook:
		b.applySnapshot(ev)
		AppliesTotal.WithLabelValues(types.EventTypeBook).Inc()
		return true, nil

	case types.EventTypePriceChange:
		if !b.initialized {
			if b.strict {
				return false, fmt.Errorf("asset %s: price_change at seq %d: %w", b.assetID, ev.Seq, types.ErrBookNotInitialized)
			}
			b.warn(fmt.Sprintf("price_change before snapshot for %s at seq %d, skipped", b.assetID, ev.Seq))
			DeltaSkipsTotal.WithLabelValues("uninitialized").Inc()
			return false, nil
		}

		applied := false
		for _, ch := range ev.Changes {
			if b.applyDelta(ch.Side, ch.Price, ch.Size) {
				applied = true
			}
		}
		if applied {
			AppliesTotal.WithLabelValues(types.EventTypePriceChange).Inc()
		}
		return applied, nil

	default:
		return false, nil
	}
}

// ApplySingleDelta applies one entry of a batched price_change. Semantics
// match a single legacy change, but the book must already be initialized.
func (b *Book) ApplySingleDelta(pc types.PriceChange) (bool, error) {
	if !b.initialized {
		if b.strict {
			return false, fmt.Errorf("asset %s: batched delta: %w", b.assetID, types.ErrBookNotInitialized)
		}
		b.warn(fmt.Sprintf("batched delta before snapshot for %s, skipped", b.assetID))
		DeltaSkipsTotal.WithLabelValues("uninitialized").Inc()
		return false, nil
	}

	if b.applyDelta(pc.Side, pc.Price, pc.Size) {
		AppliesTotal.WithLabelValues(types.EventTypePriceChange).Inc()
		return true, nil
	}
	return false, nil
}

// applySnapshot replaces both sides from a book event. Levels with a
// non-positive or unparseable size are skipped.
func (b *Book) applySnapshot(ev *types.Event) {
	b.bids = make(map[string]Level, len(ev.Bids))
	b.asks = make(map[string]Level, len(ev.Asks))

	for _, lvl := range ev.Bids {
		b.insertSnapshotLevel(b.bids, lvl)
	}
	for _, lvl := range ev.Asks {
		b.insertSnapshotLevel(b.asks, lvl)
	}

	b.initialized = true
}

func (b *Book) insertSnapshotLevel(side map[string]Level, lvl types.PriceLevel) {
	price, err := decimal.NewFromString(lvl.Price)
	if err != nil {
		b.warn(fmt.Sprintf("snapshot level with bad price %q for %s, skipped", lvl.Price, b.assetID))
		DeltaSkipsTotal.WithLabelValues("bad_price").Inc()
		return
	}

	size, err := decimal.NewFromString(lvl.Size)
	if err != nil {
		b.warn(fmt.Sprintf("snapshot level with bad size %q for %s, skipped", lvl.Size, b.assetID))
		DeltaSkipsTotal.WithLabelValues("bad_size").Inc()
		return
	}

	if size.Sign() <= 0 {
		return
	}

	side[price.String()] = Level{Price: price, Size: size}
}

// applyDelta dispatches one change to its side. Size zero removes the
// level; any other valid size sets it. Invalid fields skip the single
// entry with a warning.
func (b *Book) applyDelta(side, priceStr, sizeStr string) bool {
	if priceStr == "" {
		b.warn(fmt.Sprintf("delta without price for %s, skipped", b.assetID))
		DeltaSkipsTotal.WithLabelValues("missing_price").Inc()
		return false
	}

	var levels map[string]Level
	switch side {
	case types.SideBuy:
		levels = b.bids
	case types.SideSell:
		levels = b.asks
	default:
		b.warn(fmt.Sprintf("delta with unknown side %q for %s, skipped", side, b.assetID))
		DeltaSkipsTotal.WithLabelValues("unknown_side").Inc()
		return false
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		b.warn(fmt.Sprintf("delta with bad price %q for %s, skipped", priceStr, b.assetID))
		DeltaSkipsTotal.WithLabelValues("bad_price").Inc()
		return false
	}

	size, err := decimal.NewFromString(sizeStr)
	if err != nil {
		b.warn(fmt.Sprintf("delta with bad size %q for %s, skipped", sizeStr, b.assetID))
		DeltaSkipsTotal.WithLabelValues("bad_size").Inc()
		return false
	}

	if size.Sign() < 0 {
		b.warn(fmt.Sprintf("delta with negative size %q for %s, skipped", sizeStr, b.assetID))
		DeltaSkipsTotal.WithLabelValues("bad_size").Inc()
		return false
	}

	key := price.String()
	if size.IsZero() {
		delete(levels, key)
		return true
	}

	levels[key] = Level{Price: price, Size: size}
	return true
}

// BestBid returns the highest bid price, or nil when the side is empty.
func (b *Book) BestBid() *decimal.Decimal {
	return bestPrice(b.bids, func(cand, best decimal.Decimal) bool {
		return cand.GreaterThan(best)
	})
}

// BestAsk returns the lowest ask price, or nil when the side is empty.
func (b *Book) BestAsk() *decimal.Decimal {
	return bestPrice(b.asks, func(cand, best decimal.Decimal) bool {
		return cand.LessThan(best)
	})
}

func bestPrice(side map[string]Level, better func(cand, best decimal.Decimal) bool) *decimal.Decimal {
	var best *decimal.Decimal
	for _, lvl := range side {
		if best == nil || better(lvl.Price, *best) {
			p := lvl.Price
			best = &p
		}
	}
	return best
}

// TopBids returns up to n bid levels, best (highest) first.
func (b *Book) TopBids(n int) []Level {
	return topLevels(b.bids, n, func(a, c Level) bool {
		return a.Price.GreaterThan(c.Price)
	})
}

// TopAsks returns up to n ask levels, best (lowest) first.
func (b *Book) TopAsks(n int) []Level {
	return topLevels(b.asks, n, func(a, c Level) bool {
		return a.Price.LessThan(c.Price)
	})
}

func topLevels(side map[string]Level, n int, less func(a, b Level) bool) []Level {
	levels := make([]Level, 0, len(side))
	for _, lvl := range side {
		levels = append(levels, lvl)
	}

	sort.Slice(levels, func(i, j int) bool {
		return less(levels[i], levels[j])
	})

	if n >= 0 && len(levels) > n {
		levels = levels[:n]
	}
	return levels
}

func (b *Book) warn(msg string) {
	b.warnings = append(b.warnings, msg)
	b.logger.Warn("book-delta-skipped",
		zap.String("asset-id", b.assetID),
		zap.String("detail", msg))
}

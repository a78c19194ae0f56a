package types

// ParserVersion is the normalized event schema version. Bump on any shape
// change so downstream consumers can reject tapes they do not understand.
const ParserVersion = 2

// Event types emitted by the Polymarket CLOB market channel.
const (
	EventTypeBook           = "book"
	EventTypePriceChange    = "price_change"
	EventTypeLastTradePrice = "last_trade_price"
	EventTypeTickSizeChange = "tick_size_change"
)

// KnownEventType reports whether t is one of the event types the normalizer
// accepts. Frames with any other type are dropped.
func KnownEventType(t string) bool {
	switch t {
	case EventTypeBook, EventTypePriceChange, EventTypeLastTradePrice, EventTypeTickSizeChange:
		return true
	default:
		return false
	}
}

// Event is the canonical envelope for one normalized market event. Every
// line of events.jsonl is one Event. Seq is assigned per event (a single
// WS frame may yield several events) and is strictly increasing within a
// tape; it is the only time axis the simulator keys on. TsRecv is the
// wall-clock receipt time in seconds and is informational only.
type Event struct {
	ParserVersion int     `json:"parser_version"`
	Seq           int64   `json:"seq"`
	TsRecv        float64 `json:"ts_recv"`
	EventType     string  `json:"event_type"`
	AssetID       string  `json:"asset_id,omitempty"`
	Market        string  `json:"market,omitempty"`
	Timestamp     string  `json:"timestamp,omitempty"` // exchange ms timestamp, verbatim
	Hash          string  `json:"hash,omitempty"`

	// book payload
	Bids []PriceLevel `json:"bids,omitempty"`
	Asks []PriceLevel `json:"asks,omitempty"`

	// price_change payload: legacy single-asset Changes, or modern batched
	// PriceChanges with per-entry asset ids. Exactly one of the two is set.
	Changes      []Change      `json:"changes,omitempty"`
	PriceChanges []PriceChange `json:"price_changes,omitempty"`

	// last_trade_price payload
	Price string `json:"price,omitempty"`
	Side  string `json:"side,omitempty"`
	Size  string `json:"size,omitempty"`

	// tick_size_change payload
	OldTickSize string `json:"old_tick_size,omitempty"`
	NewTickSize string `json:"new_tick_size,omitempty"`
}

// BookAffecting reports whether applying the event can change an L2 book.
func (e *Event) BookAffecting() bool {
	return e.EventType == EventTypeBook || e.EventType == EventTypePriceChange
}

// Batched reports whether the event is a modern price_change carrying
// per-entry asset ids.
func (e *Event) Batched() bool {
	return len(e.PriceChanges) > 0
}

// AssetIDs returns every asset the event touches, in payload order. Legacy
// events name a single asset; batched events list one per entry, deduped
// preserving first occurrence.
func (e *Event) AssetIDs() []string {
	if !e.Batched() {
		if e.AssetID == "" {
			return nil
		}
		return []string{e.AssetID}
	}

	seen := make(map[string]struct{}, len(e.PriceChanges))
	ids := make([]string, 0, len(e.PriceChanges))
	for _, pc := range e.PriceChanges {
		if pc.AssetID == "" {
			continue
		}
		if _, ok := seen[pc.AssetID]; ok {
			continue
		}
		seen[pc.AssetID] = struct{}{}
		ids = append(ids, pc.AssetID)
	}

	return ids
}

package types

// Order sides as used on the CLOB wire and throughout the simulator.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ValidSide reports whether s is a known order side.
func ValidSide(s string) bool {
	return s == SideBuy || s == SideSell
}

// PriceLevel represents a single price level in the orderbook.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Change is one entry of a legacy price_change event. The affected asset
// is the event's top-level asset_id.
type Change struct {
	Side  string `json:"side"` // "BUY" or "SELL"
	Price string `json:"price"`
	Size  string `json:"size"` // "0" removes the level
}

// PriceChange is one entry of a modern batched price_change event. Each
// entry carries its own asset_id; a single frame can touch several books.
// BestBid and BestAsk echo the exchange's view of the top of book after
// the change and are informational.
type PriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
	Hash    string `json:"hash,omitempty"`
	BestBid string `json:"best_bid,omitempty"`
	BestAsk string `json:"best_ask,omitempty"`
}

// SubscribeMessage is the market-channel subscription request. The
// misspelled assets_ids key is the exchange's, not ours.
type SubscribeMessage struct {
	AssetIDs             []string `json:"assets_ids"`
	Type                 string   `json:"type"`
	CustomFeatureEnabled bool     `json:"custom_feature_enabled"`
	InitialDump          bool     `json:"initial_dump"`
}

// NewSubscribeMessage builds the standard market subscription requesting
// an initial book snapshot for every asset.
func NewSubscribeMessage(assetIDs []string) SubscribeMessage {
	return SubscribeMessage{
		AssetIDs:             assetIDs,
		Type:                 "market",
		CustomFeatureEnabled: true,
		InitialDump:          true,
	}
}

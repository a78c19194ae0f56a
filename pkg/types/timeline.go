package types

import "github.com/shopspring/decimal"

// TimelineRow is one best-bid/ask observation, emitted once per
// (asset, book-affecting event). BestBid and BestAsk are nil when the
// side is empty and serialize as JSON null.
type TimelineRow struct {
	Seq       int64            `json:"seq"`
	TsRecv    float64          `json:"ts_recv"`
	AssetID   string           `json:"asset_id"`
	EventType string           `json:"event_type"`
	BestBid   *decimal.Decimal `json:"best_bid"`
	BestAsk   *decimal.Decimal `json:"best_ask"`
}

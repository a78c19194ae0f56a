// Package strategy defines the contract between the run loops and
// trading strategies, plus the built-in strategies shipped with the
// simulator. A strategy never touches a book or the broker directly:
// it sees immutable per-event snapshots and answers with intents.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Intent actions.
const (
	ActionSubmit = "submit"
	ActionCancel = "cancel"
)

var one = decimal.NewFromInt(1)

// OrderIntent is one instruction returned by OnEvent: a submit carrying
// asset, side, limit price and size, or a cancel carrying the order id.
// Reason and Meta are free-form and end up in decisions.jsonl.
type OrderIntent struct {
	Action     string            `json:"action"`
	AssetID    string            `json:"asset_id,omitempty"`
	Side       string            `json:"side,omitempty"`
	LimitPrice *decimal.Decimal  `json:"limit_price,omitempty"`
	Size       *decimal.Decimal  `json:"size,omitempty"`
	OrderID    string            `json:"order_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Submit builds a submit intent.
func Submit(assetID, side string, limit, size decimal.Decimal) OrderIntent {
	return OrderIntent{
		Action:     ActionSubmit,
		AssetID:    assetID,
		Side:       side,
		LimitPrice: &limit,
		Size:       &size,
	}
}

// Cancel builds a cancel intent for an open order.
func Cancel(orderID string) OrderIntent {
	return OrderIntent{Action: ActionCancel, OrderID: orderID}
}

// Validate checks that the intent carries the fields its action needs.
// Numeric range checks stay with the broker; this rejects only intents
// whose shape is wrong.
func (i *OrderIntent) Validate() error {
	switch i.Action {
	case ActionSubmit:
		if i.AssetID == "" {
			return fmt.Errorf("submit intent without asset_id")
		}
		if !types.ValidSide(i.Side) {
			return fmt.Errorf("submit intent with invalid side %q", i.Side)
		}
		if i.LimitPrice == nil {
			return fmt.Errorf("submit intent without limit_price")
		}
		if i.Size == nil {
			return fmt.Errorf("submit intent without size")
		}
		return nil

	case ActionCancel:
		if i.OrderID == "" {
			return fmt.Errorf("cancel intent without order_id")
		}
		return nil

	default:
		return fmt.Errorf("intent with unknown action %q", i.Action)
	}
}

// BBO is a best-bid/best-ask snapshot for one asset. Prices are nil when
// the side is empty; sizes accompany their price when present.
type BBO struct {
	BestBid     *decimal.Decimal `json:"best_bid"`
	BestAsk     *decimal.Decimal `json:"best_ask"`
	BestBidSize *decimal.Decimal `json:"best_bid_size,omitempty"`
	BestAskSize *decimal.Decimal `json:"best_ask_size,omitempty"`
}

// Context is the per-event snapshot handed to OnEvent after books have
// been updated. BestBid/BestAsk are the primary asset's; BestByAsset
// covers every book in the run. Everything here is a copy, so a strategy
// cannot reach run state through it, but Event is shared and must be
// treated as read-only.
type Context struct {
	Event       *types.Event
	Seq         int64
	TsRecv      float64
	BestBid     *decimal.Decimal
	BestAsk     *decimal.Decimal
	OpenOrders  []sim.Order
	BestByAsset map[string]BBO
}

// Strategy is the contract the run loops drive. Implementations must be
// deterministic: the same tape and config always produce the same
// intents, so no wall clock, randomness or external state.
type Strategy interface {
	// OnStart runs once before the first event.
	OnStart(primaryAsset string, cash decimal.Decimal)

	// OnEvent runs for every normalized event and returns the intents to
	// execute at that event's seq.
	OnEvent(ctx *Context) []OrderIntent

	// OnFill runs for every fill with a non-zero fill size.
	OnFill(fill sim.FillRecord)

	// OnFinish runs once after the last event.
	OnFinish()
}

// OpportunityProvider is implemented by strategies that record modeled
// mispricing rows; the runner writes them to opportunities.jsonl.
type OpportunityProvider interface {
	Opportunities() []Opportunity
}

// ArbSummarizer is implemented by strategies that expose a modeled
// arbitrage summary for the run manifest.
type ArbSummarizer interface {
	ModeledArbSummary() map[string]any
}

// RejectionCounter is implemented by strategies that count why candidate
// trades were passed on; the counts land in the run manifest.
type RejectionCounter interface {
	RejectionCounts() map[string]int
}

// Opportunity is one modeled mispricing: buying both outcomes at their
// asks costs PriceSum < 1 and locks in ProfitMargin per share before
// fees. MaxSize is the executable size, the smaller ask capped by
// config.
type Opportunity struct {
	Seq          int64           `json:"seq"`
	TsRecv       float64         `json:"ts_recv"`
	YesAssetID   string          `json:"yes_asset_id"`
	NoAssetID    string          `json:"no_asset_id"`
	YesAsk       decimal.Decimal `json:"yes_ask"`
	NoAsk        decimal.Decimal `json:"no_ask"`
	PriceSum     decimal.Decimal `json:"price_sum"`
	ProfitMargin decimal.Decimal `json:"profit_margin"`
	ProfitBPS    int64           `json:"profit_bps"`
	MaxSize      decimal.Decimal `json:"max_size"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	TotalFees    decimal.Decimal `json:"total_fees"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	NetProfitBPS int64           `json:"net_profit_bps"`
}

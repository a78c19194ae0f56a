package sim

import (
	"github.com/shopspring/decimal"

	"github.com/mselser95/polymarket-sim/internal/book"
)

// Order lifecycle states. Terminal states are filled, cancelled and
// rejected; a partially filled order that is never cancelled ends the run
// in partial.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusPartial   = "partial"
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// Fill outcomes.
const (
	FillStatusFull     = "full"
	FillStatusPartial  = "partial"
	FillStatusRejected = "rejected"
)

// Fill rejection reasons.
const (
	RejectBookNotInitialized  = "book_not_initialized"
	RejectNoCompetitiveLevels = "no_competitive_levels"
)

// Order lifecycle event names as they appear in the broker's event log.
const (
	EventSubmitted       = "submitted"
	EventActivated       = "activated"
	EventFill            = "fill"
	EventCancelSubmitted = "cancel_submitted"
	EventCancelled       = "cancelled"
)

// Order is one simulated limit order tracked by the broker.
type Order struct {
	OrderID            string          `json:"order_id"`
	AssetID            string          `json:"asset_id"`
	Side               string          `json:"side"`
	LimitPrice         decimal.Decimal `json:"limit_price"`
	Size               decimal.Decimal `json:"size"`
	SubmitSeq          int64           `json:"submit_seq"`
	SubmitTs           float64         `json:"submit_ts"`
	EffectiveSeq       int64           `json:"effective_seq"`
	CancelEffectiveSeq *int64          `json:"cancel_effective_seq,omitempty"`
	Status             string          `json:"status"`
	FilledSize         decimal.Decimal `json:"filled_size"`
}

// Remaining returns the unfilled size.
func (o *Order) Remaining() decimal.Decimal {
	return o.Size.Sub(o.FilledSize)
}

// Terminal reports whether the order can no longer change state.
func (o *Order) Terminal() bool {
	switch o.Status {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Because is the audit bundle attached to every fill decision: the book
// state the engine saw at evaluation time and the exact levels it consumed.
type Because struct {
	EvalSeq        int64            `json:"eval_seq"`
	BookBestBid    *decimal.Decimal `json:"book_best_bid"`
	BookBestAsk    *decimal.Decimal `json:"book_best_ask"`
	LevelsConsumed []book.Level     `json:"levels_consumed"`
}

// FillRecord is the outcome of one fill evaluation. FillPrice is the
// volume-weighted average across consumed levels; Remaining is the
// order's unfilled size after this fill.
type FillRecord struct {
	OrderID      string          `json:"order_id"`
	AssetID      string          `json:"asset_id"`
	Seq          int64           `json:"seq"`
	TsRecv       float64         `json:"ts_recv"`
	Side         string          `json:"side"`
	FillPrice    decimal.Decimal `json:"fill_price"`
	FillSize     decimal.Decimal `json:"fill_size"`
	Remaining    decimal.Decimal `json:"remaining"`
	FillStatus   string          `json:"fill_status"`
	RejectReason string          `json:"reject_reason,omitempty"`
	Because      Because         `json:"because"`
}

// OrderEvent is one entry of the broker's lifecycle log. Fill events carry
// the executed price and size; other events leave them nil.
type OrderEvent struct {
	Event   string           `json:"event"`
	OrderID string           `json:"order_id"`
	AssetID string           `json:"asset_id,omitempty"`
	Seq     int64            `json:"seq"`
	TsRecv  float64          `json:"ts_recv"`
	Side    string           `json:"side,omitempty"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	Size    *decimal.Decimal `json:"size,omitempty"`
}

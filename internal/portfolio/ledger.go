package portfolio

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Mark methods.
const (
	MarkMethodBid      = "bid"
	MarkMethodMidpoint = "midpoint"
)

// Pricing sources reported in ledger summaries.
const (
	PricingSourceTape = "tape"
	PricingSourceLive = "live"
)

// Row event names for the two guaranteed bookend rows. Every other row
// carries the broker lifecycle event name that produced it.
const (
	RowInitial = "initial"
	RowFinal   = "final"
)

// LedgerRow is one portfolio snapshot, taken after each broker lifecycle
// event plus the guaranteed initial and final bookends.
type LedgerRow struct {
	Event       string                     `json:"event"`
	OrderID     string                     `json:"order_id,omitempty"`
	Seq         int64                      `json:"seq"`
	TsRecv      float64                    `json:"ts_recv"`
	Cash        decimal.Decimal            `json:"cash"`
	RealizedPnL decimal.Decimal            `json:"realized_pnl"`
	Positions   map[string]decimal.Decimal `json:"positions"`
	MarkValue   decimal.Decimal            `json:"mark_value"`
	Equity      decimal.Decimal            `json:"equity"`
	FeesTotal   decimal.Decimal            `json:"fees_total"`
}

// EquityPoint is one equity curve sample.
type EquityPoint struct {
	Seq    int64           `json:"seq"`
	TsRecv float64         `json:"ts_recv"`
	Equity decimal.Decimal `json:"equity"`
}

// Summary is the end-of-run account statement.
type Summary struct {
	RunID         string          `json:"run_id"`
	StartingCash  decimal.Decimal `json:"starting_cash"`
	FinalCash     decimal.Decimal `json:"final_cash"`
	FinalEquity   decimal.Decimal `json:"final_equity"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	MarkMethod    string          `json:"mark_method"`
	PricingSource string          `json:"pricing_source"`
}

// Bounds anchor the guaranteed initial and final rows to the first and
// last event of the run, so a zero-trade run still produces both.
type Bounds struct {
	FirstSeq int64
	FirstTs  float64
	LastSeq  int64
	LastTs   float64
}

// Config holds ledger configuration.
type Config struct {
	StartingCash decimal.Decimal
	// FeeRateBps is the flat taker fee in basis points of notional.
	// Zero means no fees.
	FeeRateBps int
	MarkMethod string
	// PricingSource names where mark prices came from, "tape" for
	// replay and session runs, "live" for shadow runs.
	PricingSource string
	Logger        *zap.Logger
}

type bbo struct {
	bid *decimal.Decimal
	ask *decimal.Decimal
}

// Ledger turns a broker lifecycle log plus a best-bid/ask timeline into
// cash, PnL and equity accounting. Compute rebuilds the full row set from
// scratch each call, so a session can replay it over a growing log. Not
// safe for concurrent use.
type Ledger struct {
	startingCash  decimal.Decimal
	feeRateBps    decimal.Decimal
	markMethod    string
	pricingSource string
	logger        *zap.Logger

	cash     decimal.Decimal
	realized decimal.Decimal
	fees     decimal.Decimal
	inv      inventory
	marks    map[string]bbo
}

// New creates a ledger. MarkMethod defaults to bid, PricingSource to tape.
func New(cfg *Config) *Ledger {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	markMethod := cfg.MarkMethod
	if markMethod == "" {
		markMethod = MarkMethodBid
	}

	pricingSource := cfg.PricingSource
	if pricingSource == "" {
		pricingSource = "tape"
	}

	return &Ledger{
		startingCash:  cfg.StartingCash,
		feeRateBps:    decimal.NewFromInt(int64(cfg.FeeRateBps)),
		markMethod:    markMethod,
		pricingSource: pricingSource,
		logger:        logger,
		cash:          cfg.StartingCash,
		inv:           inventory{},
		marks:         map[string]bbo{},
	}
}

// Compute walks the lifecycle log in order and returns one row per event,
// bracketed by the initial and final rows. Before each row the timeline
// cursor advances through every row with seq ≤ the event's seq, so marks
// always reflect the book state at that point on the tape.
func (l *Ledger) Compute(orderEvents []sim.OrderEvent, timeline []types.TimelineRow, bounds Bounds) []LedgerRow {
	l.cash = l.startingCash
	l.realized = decimal.Zero
	l.fees = decimal.Zero
	l.inv = inventory{}
	l.marks = map[string]bbo{}

	rows := make([]LedgerRow, 0, len(orderEvents)+2)
	cursor := 0

	rows = append(rows, l.row(RowInitial, "", bounds.FirstSeq, bounds.FirstTs))

	for _, ev := range orderEvents {
		cursor = l.advanceMarks(timeline, cursor, ev.Seq)

		if ev.Event == sim.EventFill {
			l.applyFill(ev)
		}

		rows = append(rows, l.row(ev.Event, ev.OrderID, ev.Seq, ev.TsRecv))
	}

	l.advanceMarks(timeline, cursor, bounds.LastSeq)
	rows = append(rows, l.row(RowFinal, "", bounds.LastSeq, bounds.LastTs))

	for _, r := range rows {
		RowsTotal.WithLabelValues(r.Event).Inc()
	}
	EquityGauge.Set(rows[len(rows)-1].Equity.InexactFloat64())
	FeesGauge.Set(l.fees.InexactFloat64())

	l.logger.Debug("ledger-computed",
		zap.Int("rows", len(rows)),
		zap.String("cash", l.cash.String()),
		zap.String("realized-pnl", l.realized.String()),
		zap.String("fees-total", l.fees.String()))

	return rows
}

// Summary marks any open positions at the provided final best bid/ask and
// returns the account statement. Nil sides leave the affected positions
// valued at zero, the same rule marking uses mid-run.
func (l *Ledger) Summary(runID string, finalBid, finalAsk *decimal.Decimal) Summary {
	mark := decimal.Zero
	for assetID := range l.inv {
		mark = mark.Add(l.markPosition(assetID, bbo{bid: finalBid, ask: finalAsk}))
	}

	finalEquity := l.cash.Add(mark)

	return Summary{
		RunID:         runID,
		StartingCash:  l.startingCash,
		FinalCash:     l.cash,
		FinalEquity:   finalEquity,
		RealizedPnL:   l.realized,
		UnrealizedPnL: mark.Sub(l.inv.costBasis()),
		TotalFees:     l.fees,
		NetProfit:     finalEquity.Sub(l.startingCash),
		MarkMethod:    l.markMethod,
		PricingSource: l.pricingSource,
	}
}

// EquityCurve projects ledger rows down to equity samples.
func EquityCurve(rows []LedgerRow) []EquityPoint {
	points := make([]EquityPoint, len(rows))
	for i, r := range rows {
		points[i] = EquityPoint{Seq: r.Seq, TsRecv: r.TsRecv, Equity: r.Equity}
	}
	return points
}

// applyFill books one fill into cash, fees and FIFO lots.
func (l *Ledger) applyFill(ev sim.OrderEvent) {
	if ev.Price == nil || ev.Size == nil {
		l.logger.Warn("ledger-fill-missing-price-size",
			zap.String("order-id", ev.OrderID),
			zap.Int64("seq", ev.Seq))
		return
	}

	price := *ev.Price
	size := *ev.Size
	notional := price.Mul(size)
	fee := notional.Mul(l.feeRateBps).Shift(-4)

	switch ev.Side {
	case types.SideBuy:
		l.cash = l.cash.Sub(notional).Sub(fee)
		l.realized = l.realized.Add(l.inv.applyBuy(ev.AssetID, price, size))
	case types.SideSell:
		l.cash = l.cash.Add(notional).Sub(fee)
		l.realized = l.realized.Add(l.inv.applySell(ev.AssetID, price, size))
	default:
		l.logger.Warn("ledger-fill-unknown-side",
			zap.String("order-id", ev.OrderID),
			zap.String("side", ev.Side))
		return
	}

	l.fees = l.fees.Add(fee)
}

// advanceMarks consumes timeline rows through seq and records the latest
// best bid/ask per asset.
func (l *Ledger) advanceMarks(timeline []types.TimelineRow, cursor int, seq int64) int {
	for cursor < len(timeline) && timeline[cursor].Seq <= seq {
		row := timeline[cursor]
		l.marks[row.AssetID] = bbo{bid: row.BestBid, ask: row.BestAsk}
		cursor++
	}
	return cursor
}

// row snapshots the current account state.
func (l *Ledger) row(event, orderID string, seq int64, tsRecv float64) LedgerRow {
	mark := l.markValue()
	return LedgerRow{
		Event:       event,
		OrderID:     orderID,
		Seq:         seq,
		TsRecv:      tsRecv,
		Cash:        l.cash,
		RealizedPnL: l.realized,
		Positions:   l.inv.positions(),
		MarkValue:   mark,
		Equity:      l.cash.Add(mark),
		FeesTotal:   l.fees,
	}
}

// markValue values every open position at its asset's last known marks.
func (l *Ledger) markValue() decimal.Decimal {
	total := decimal.Zero
	for assetID := range l.inv {
		total = total.Add(l.markPosition(assetID, l.marks[assetID]))
	}
	return total
}

// markPosition values one asset's net position against a best bid/ask
// pair. Method bid values longs at the bid and shorts at the ask;
// midpoint uses (bid+ask)/2 for both. A missing required side values the
// position at zero.
func (l *Ledger) markPosition(assetID string, prices bbo) decimal.Decimal {
	net := l.inv.netShares(assetID)
	if net.IsZero() {
		return decimal.Zero
	}

	var mark *decimal.Decimal
	switch l.markMethod {
	case MarkMethodMidpoint:
		if prices.bid != nil && prices.ask != nil {
			mid := prices.bid.Add(*prices.ask).Div(decimal.NewFromInt(2))
			mark = &mid
		}
	default:
		if net.IsPositive() {
			mark = prices.bid
		} else {
			mark = prices.ask
		}
	}

	if mark == nil {
		return decimal.Zero
	}
	return net.Mul(*mark)
}

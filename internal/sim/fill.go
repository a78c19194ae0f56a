package sim

import (
	"github.com/shopspring/decimal"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// TryFill evaluates one order against the book as updated for the current
// event. The book must belong to the order's asset and the order must be
// active or partial. The engine never mutates the order or the book; the
// broker applies accepted fills.
//
// A BUY walks ask levels priced at or below the limit, cheapest first,
// consuming min(level, remaining) at each until the order is filled or
// levels run out. A SELL mirrors over bids, highest first. The fill price
// is the volume-weighted average of consumed levels.
func TryFill(o *Order, b *book.Book, evalSeq int64, tsRecv float64) FillRecord {
	because := Because{
		EvalSeq:        evalSeq,
		BookBestBid:    b.BestBid(),
		BookBestAsk:    b.BestAsk(),
		LevelsConsumed: []book.Level{},
	}

	if !b.Initialized() {
		return rejectFill(o, evalSeq, tsRecv, RejectBookNotInitialized, because)
	}

	levels := competitiveLevels(o, b)
	if len(levels) == 0 {
		return rejectFill(o, evalSeq, tsRecv, RejectNoCompetitiveLevels, because)
	}

	remaining := o.Remaining()
	filled := decimal.Zero
	notional := decimal.Zero

	for _, lvl := range levels {
		if remaining.Sign() <= 0 {
			break
		}

		consume := lvl.Size
		if consume.GreaterThan(remaining) {
			consume = remaining
		}
		if consume.Sign() <= 0 {
			continue
		}

		filled = filled.Add(consume)
		notional = notional.Add(lvl.Price.Mul(consume))
		remaining = remaining.Sub(consume)
		because.LevelsConsumed = append(because.LevelsConsumed, book.Level{Price: lvl.Price, Size: consume})
	}

	if filled.Sign() == 0 {
		return rejectFill(o, evalSeq, tsRecv, RejectNoCompetitiveLevels, because)
	}

	status := FillStatusPartial
	if remaining.Sign() == 0 {
		status = FillStatusFull
	}

	return FillRecord{
		OrderID:    o.OrderID,
		AssetID:    o.AssetID,
		Seq:        evalSeq,
		TsRecv:     tsRecv,
		Side:       o.Side,
		FillPrice:  notional.Div(filled),
		FillSize:   filled,
		Remaining:  remaining,
		FillStatus: status,
		Because:    because,
	}
}

// competitiveLevels selects the levels the order may trade against, best
// price first: asks at or below the limit for a BUY, bids at or above it
// for a SELL. Returned slices are already sorted by the book.
func competitiveLevels(o *Order, b *book.Book) []book.Level {
	var out []book.Level

	switch o.Side {
	case types.SideBuy:
		for _, lvl := range b.TopAsks(-1) {
			if lvl.Price.GreaterThan(o.LimitPrice) {
				break
			}
			if lvl.Size.Sign() > 0 {
				out = append(out, lvl)
			}
		}
	case types.SideSell:
		for _, lvl := range b.TopBids(-1) {
			if lvl.Price.LessThan(o.LimitPrice) {
				break
			}
			if lvl.Size.Sign() > 0 {
				out = append(out, lvl)
			}
		}
	}

	return out
}

func rejectFill(o *Order, evalSeq int64, tsRecv float64, reason string, because Because) FillRecord {
	FillRejectionsTotal.WithLabelValues(reason).Inc()

	return FillRecord{
		OrderID:      o.OrderID,
		AssetID:      o.AssetID,
		Seq:          evalSeq,
		TsRecv:       tsRecv,
		Side:         o.Side,
		FillPrice:    decimal.Zero,
		FillSize:     decimal.Zero,
		Remaining:    o.Remaining(),
		FillStatus:   FillStatusRejected,
		RejectReason: reason,
		Because:      because,
	}
}

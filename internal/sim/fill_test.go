package sim

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func bookWithLevels(t *testing.T, bids, asks []types.PriceLevel) *book.Book {
	t.Helper()
	b := book.New(&book.Config{AssetID: "test-token-1"})
	_, err := b.Apply(&types.Event{
		Seq:       0,
		EventType: types.EventTypeBook,
		AssetID:   "test-token-1",
		Bids:      bids,
		Asks:      asks,
	})
	if err != nil {
		t.Fatalf("seed book failed: %v", err)
	}
	return b
}

func activeOrder(t *testing.T, side, limit, size string) *Order {
	t.Helper()
	return &Order{
		OrderID:    "ord-1",
		AssetID:    "test-token-1",
		Side:       side,
		LimitPrice: dec(t, limit),
		Size:       dec(t, size),
		Status:     StatusActive,
		FilledSize: decimal.Zero,
	}
}

func TestTryFill_AtBetterPrice(t *testing.T) {
	b := bookWithLevels(t,
		[]types.PriceLevel{{Price: "0.44", Size: "100"}},
		[]types.PriceLevel{{Price: "0.46", Size: "100"}},
	)
	order := activeOrder(t, types.SideBuy, "0.50", "50")

	fr := TryFill(order, b, 1, 1.5)

	if fr.FillStatus != FillStatusFull {
		t.Fatalf("expected full fill, got %s (reason %q)", fr.FillStatus, fr.RejectReason)
	}
	if !fr.FillPrice.Equal(dec(t, "0.46")) {
		t.Errorf("expected fill_price=0.46, got %s", fr.FillPrice)
	}
	if !fr.FillSize.Equal(dec(t, "50")) {
		t.Errorf("expected fill_size=50, got %s", fr.FillSize)
	}
	if !fr.Remaining.IsZero() {
		t.Errorf("expected remaining=0, got %s", fr.Remaining)
	}
	if len(fr.Because.LevelsConsumed) != 1 {
		t.Fatalf("expected 1 consumed level, got %d", len(fr.Because.LevelsConsumed))
	}
	lc := fr.Because.LevelsConsumed[0]
	if !lc.Price.Equal(dec(t, "0.46")) || !lc.Size.Equal(dec(t, "50")) {
		t.Errorf("expected consumed (0.46, 50), got (%s, %s)", lc.Price, lc.Size)
	}
	if fr.Because.EvalSeq != 1 {
		t.Errorf("expected eval_seq=1, got %d", fr.Because.EvalSeq)
	}
	if fr.Because.BookBestBid == nil || !fr.Because.BookBestBid.Equal(dec(t, "0.44")) {
		t.Errorf("expected audited best_bid=0.44, got %v", fr.Because.BookBestBid)
	}
}

func TestTryFill_WalksLevels(t *testing.T) {
	b := bookWithLevels(t, nil, []types.PriceLevel{
		{Price: "0.46", Size: "30"},
		{Price: "0.48", Size: "70"},
	})
	order := activeOrder(t, types.SideBuy, "0.50", "80")

	fr := TryFill(order, b, 2, 2.0)

	if fr.FillStatus != FillStatusFull {
		t.Fatalf("expected full fill, got %s", fr.FillStatus)
	}
	// (0.46*30 + 0.48*50) / 80 = 0.4725
	if !fr.FillPrice.Equal(dec(t, "0.4725")) {
		t.Errorf("expected fill_price=0.4725, got %s", fr.FillPrice)
	}
	if !fr.FillSize.Equal(dec(t, "80")) {
		t.Errorf("expected fill_size=80, got %s", fr.FillSize)
	}
	if len(fr.Because.LevelsConsumed) != 2 {
		t.Fatalf("expected 2 consumed levels, got %d", len(fr.Because.LevelsConsumed))
	}
	second := fr.Because.LevelsConsumed[1]
	if !second.Price.Equal(dec(t, "0.48")) || !second.Size.Equal(dec(t, "50")) {
		t.Errorf("expected second consumed (0.48, 50), got (%s, %s)", second.Price, second.Size)
	}
}

func TestTryFill_SellMirror(t *testing.T) {
	b := bookWithLevels(t, []types.PriceLevel{
		{Price: "0.44", Size: "30"},
		{Price: "0.42", Size: "70"},
	}, nil)
	order := activeOrder(t, types.SideSell, "0.40", "50")

	fr := TryFill(order, b, 3, 3.0)

	if fr.FillStatus != FillStatusFull {
		t.Fatalf("expected full fill, got %s", fr.FillStatus)
	}
	// (0.44*30 + 0.42*20) / 50 = 0.432
	if !fr.FillPrice.Equal(dec(t, "0.432")) {
		t.Errorf("expected fill_price=0.432, got %s", fr.FillPrice)
	}
}

func TestTryFill_VWAPIdentity(t *testing.T) {
	b := bookWithLevels(t, nil, []types.PriceLevel{
		{Price: "0.46", Size: "30"},
		{Price: "0.48", Size: "70"},
	})
	order := activeOrder(t, types.SideBuy, "0.50", "80")

	fr := TryFill(order, b, 1, 1.0)

	// fill_price * fill_size must equal the sum over consumed levels
	notional := decimal.Zero
	for _, lvl := range fr.Because.LevelsConsumed {
		notional = notional.Add(lvl.Price.Mul(lvl.Size))
	}
	if !fr.FillPrice.Mul(fr.FillSize).Equal(notional) {
		t.Errorf("VWAP identity broken: %s * %s != %s",
			fr.FillPrice, fr.FillSize, notional)
	}
}

func TestTryFill_PartialOnThinBook(t *testing.T) {
	b := bookWithLevels(t, nil, []types.PriceLevel{{Price: "0.46", Size: "30"}})
	order := activeOrder(t, types.SideBuy, "0.46", "100")

	fr := TryFill(order, b, 1, 1.0)

	if fr.FillStatus != FillStatusPartial {
		t.Fatalf("expected partial fill, got %s", fr.FillStatus)
	}
	if !fr.FillSize.Equal(dec(t, "30")) {
		t.Errorf("expected fill_size=30, got %s", fr.FillSize)
	}
	if !fr.Remaining.Equal(dec(t, "70")) {
		t.Errorf("expected remaining=70, got %s", fr.Remaining)
	}
}

func TestTryFill_NeverExceedsRemaining(t *testing.T) {
	b := bookWithLevels(t, nil, []types.PriceLevel{{Price: "0.46", Size: "500"}})
	order := activeOrder(t, types.SideBuy, "0.50", "80")
	order.FilledSize = dec(t, "60")
	order.Status = StatusPartial

	fr := TryFill(order, b, 4, 4.0)

	if !fr.FillSize.Equal(dec(t, "20")) {
		t.Errorf("expected fill_size=20 (remaining only), got %s", fr.FillSize)
	}
	if fr.FillStatus != FillStatusFull {
		t.Errorf("expected full fill of remainder, got %s", fr.FillStatus)
	}
}

func TestTryFill_Rejections(t *testing.T) {
	t.Run("book_not_initialized", func(t *testing.T) {
		b := book.New(&book.Config{AssetID: "test-token-1"})
		order := activeOrder(t, types.SideBuy, "0.50", "10")

		fr := TryFill(order, b, 1, 1.0)

		if fr.FillStatus != FillStatusRejected {
			t.Fatalf("expected rejection, got %s", fr.FillStatus)
		}
		if fr.RejectReason != RejectBookNotInitialized {
			t.Errorf("expected reason %q, got %q", RejectBookNotInitialized, fr.RejectReason)
		}
	})

	t.Run("no_competitive_levels", func(t *testing.T) {
		b := bookWithLevels(t, nil, []types.PriceLevel{{Price: "0.60", Size: "100"}})
		order := activeOrder(t, types.SideBuy, "0.50", "10")

		fr := TryFill(order, b, 1, 1.0)

		if fr.FillStatus != FillStatusRejected {
			t.Fatalf("expected rejection, got %s", fr.FillStatus)
		}
		if fr.RejectReason != RejectNoCompetitiveLevels {
			t.Errorf("expected reason %q, got %q", RejectNoCompetitiveLevels, fr.RejectReason)
		}
		if !fr.FillSize.IsZero() {
			t.Errorf("expected zero fill size on rejection, got %s", fr.FillSize)
		}
	})

	t.Run("empty_book_side", func(t *testing.T) {
		b := bookWithLevels(t, []types.PriceLevel{{Price: "0.44", Size: "10"}}, nil)
		order := activeOrder(t, types.SideBuy, "0.50", "10")

		fr := TryFill(order, b, 1, 1.0)

		if fr.FillStatus != FillStatusRejected {
			t.Fatalf("expected rejection on empty ask side, got %s", fr.FillStatus)
		}
	})
}

func TestTryFill_DoesNotMutate(t *testing.T) {
	b := bookWithLevels(t,
		[]types.PriceLevel{{Price: "0.44", Size: "100"}},
		[]types.PriceLevel{{Price: "0.46", Size: "100"}},
	)
	order := activeOrder(t, types.SideBuy, "0.50", "50")

	_ = TryFill(order, b, 1, 1.0)

	if !order.FilledSize.IsZero() {
		t.Errorf("fill engine mutated the order: filled_size=%s", order.FilledSize)
	}
	if order.Status != StatusActive {
		t.Errorf("fill engine mutated the order status: %s", order.Status)
	}

	asks := b.TopAsks(-1)
	if len(asks) != 1 || !asks[0].Size.Equal(dec(t, "100")) {
		t.Errorf("fill engine mutated the book: %+v", asks)
	}
}

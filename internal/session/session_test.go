package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/mselser95/polymarket-sim/internal/runner"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/tape"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

const (
	yesToken = "yes-token-1"
	noToken  = "no-token-1"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func bookEvent(seq int64, assetID string, bids, asks [][2]string) types.Event {
	ev := types.Event{
		ParserVersion: types.ParserVersion,
		Seq:           seq,
		TsRecv:        float64(seq) + 0.5,
		EventType:     types.EventTypeBook,
		AssetID:       assetID,
	}
	for _, b := range bids {
		ev.Bids = append(ev.Bids, types.PriceLevel{Price: b[0], Size: b[1]})
	}
	for _, a := range asks {
		ev.Asks = append(ev.Asks, types.PriceLevel{Price: a[0], Size: a[1]})
	}
	return ev
}

func tradeEvent(seq int64, assetID, price string) types.Event {
	return types.Event{
		ParserVersion: types.ParserVersion,
		Seq:           seq,
		TsRecv:        float64(seq) + 0.5,
		EventType:     types.EventTypeLastTradePrice,
		AssetID:       assetID,
		Price:         price,
		Side:          "BUY",
		Size:          "1",
	}
}

func memTape(events ...types.Event) *tape.Tape {
	return &tape.Tape{Dir: "testdata/mem", Events: events}
}

func newTestSession(t *testing.T, tp *tape.Tape) *Session {
	t.Helper()
	s, err := New(&Config{
		Tape:         tp,
		StartingCash: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	tp := memTape(bookEvent(0, yesToken, nil, [][2]string{{"0.46", "100"}}))

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"nil_tape", func(c *Config) { c.Tape = nil }},
		{"negative_cash", func(c *Config) { c.StartingCash = decimal.NewFromInt(-1) }},
		{"negative_fee", func(c *Config) { c.FeeRateBps = -5 }},
		{"bad_mark_method", func(c *Config) { c.MarkMethod = "vwap" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Tape: tp, StartingCash: decimal.NewFromInt(100)}
			tt.mutate(cfg)
			if _, err := New(cfg); err == nil {
				t.Fatal("expected config error, got nil")
			}
		})
	}

	s := newTestSession(t, tp)
	if s.ID() == "" {
		t.Error("expected a generated session id")
	}
	state := s.GetState()
	if len(state.Assets) != 1 || state.Assets[0].AssetID != yesToken {
		t.Errorf("expected pre-created book for %s, got %+v", yesToken, state.Assets)
	}
	if state.Assets[0].BestBid != nil || state.Assets[0].BestAsk != nil {
		t.Error("expected empty book before any step")
	}
}

func TestStep_AdvancesCursorUpToN(t *testing.T) {
	tp := memTape(
		bookEvent(0, yesToken, [][2]string{{"0.44", "100"}}, [][2]string{{"0.46", "100"}}),
		tradeEvent(1, yesToken, "0.45"),
		bookEvent(2, noToken, [][2]string{{"0.30", "50"}}, [][2]string{{"0.56", "50"}}),
	)
	s := newTestSession(t, tp)

	n, err := s.Step(2)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if n != 2 || s.Cursor() != 2 {
		t.Errorf("expected cursor 2 after Step(2), got n=%d cursor=%d", n, s.Cursor())
	}
	if s.Done() {
		t.Error("session should not be done at cursor 2 of 3")
	}

	n, err = s.Step(10)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if n != 1 || !s.Done() {
		t.Errorf("expected the final event only, got n=%d done=%v", n, s.Done())
	}

	n, err = s.Step(1)
	if err != nil {
		t.Fatalf("step past end: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 events past the end, got %d", n)
	}

	if n, _ := s.Step(0); n != 0 {
		t.Errorf("Step(0) stepped %d events", n)
	}
}

// An order submitted before any step anchors at the first event and is
// eligible as soon as that event is applied.
func TestSubmitOrder_ZeroLatencyFillsOnNextStep(t *testing.T) {
	tp := memTape(
		bookEvent(0, yesToken, [][2]string{{"0.44", "100"}}, [][2]string{{"0.46", "100"}}),
	)
	s := newTestSession(t, tp)

	orderID, err := s.SubmitOrder(yesToken, "BUY", dec(t, "0.50"), dec(t, "50"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if orderID == "" {
		t.Fatal("expected an order id")
	}

	if _, err := s.Step(1); err != nil {
		t.Fatalf("step: %v", err)
	}

	fills := s.broker.Fills()
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	f := fills[0]
	if f.Seq != 0 || !f.FillPrice.Equal(dec(t, "0.46")) || !f.FillSize.Equal(dec(t, "50")) {
		t.Errorf("unexpected fill: seq=%d price=%s size=%s", f.Seq, f.FillPrice, f.FillSize)
	}

	order, ok := s.broker.Order(orderID)
	if !ok || order.Status != sim.StatusFilled {
		t.Errorf("expected filled order, got %+v", order)
	}

	if len(s.actions) != 1 {
		t.Fatalf("expected 1 user action, got %d", len(s.actions))
	}
	a := s.actions[0]
	if a.Action != ActionSubmitOrder || a.OrderID != orderID || a.Error != "" || a.Seq != 0 {
		t.Errorf("unexpected user action: %+v", a)
	}
}

func TestSubmitOrder_RejectionsLoggedNotPlaced(t *testing.T) {
	tp := memTape(bookEvent(0, yesToken, nil, [][2]string{{"0.46", "100"}}))
	s := newTestSession(t, tp)

	if _, err := s.SubmitOrder(yesToken, "BUY", dec(t, "1.5"), dec(t, "10")); err == nil {
		t.Fatal("expected limit price rejection")
	}
	if _, err := s.SubmitOrder(yesToken, "BUY", dec(t, "0.5"), decimal.Zero); err == nil {
		t.Fatal("expected size rejection")
	}
	if err := s.CancelOrder("no-such-order"); !errors.Is(err, types.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if len(s.broker.Orders()) != 0 {
		t.Errorf("rejected submits must not create orders, got %d", len(s.broker.Orders()))
	}
	if len(s.actions) != 3 {
		t.Fatalf("expected 3 logged actions, got %d", len(s.actions))
	}
	for i, a := range s.actions {
		if a.Error == "" {
			t.Errorf("action %d should carry the rejection error", i)
		}
		if a.OrderID != "" && a.Action == ActionSubmitOrder {
			t.Errorf("rejected submit %d must not carry an order id", i)
		}
	}
}

// A batched price change touching two assets appends one timeline row
// per touched asset at the same seq.
func TestStep_TimelineRowPerTouchedAsset(t *testing.T) {
	batched := types.Event{
		ParserVersion: types.ParserVersion,
		Seq:           2,
		TsRecv:        2.5,
		EventType:     types.EventTypePriceChange,
		PriceChanges: []types.PriceChange{
			{AssetID: yesToken, Side: "SELL", Price: "0.55", Size: "40"},
			{AssetID: noToken, Side: "SELL", Price: "0.65", Size: "40"},
		},
	}
	tp := memTape(
		bookEvent(0, yesToken, [][2]string{{"0.40", "100"}}, [][2]string{{"0.60", "100"}}),
		bookEvent(1, noToken, [][2]string{{"0.35", "100"}}, [][2]string{{"0.70", "100"}}),
		batched,
	)
	s := newTestSession(t, tp)

	if _, err := s.Step(3); err != nil {
		t.Fatalf("step: %v", err)
	}

	rows := s.Timeline()
	if len(rows) != 4 {
		t.Fatalf("expected 4 timeline rows (2 books + 2 batched), got %d", len(rows))
	}
	if rows[2].Seq != 2 || rows[2].AssetID != yesToken || rows[3].Seq != 2 || rows[3].AssetID != noToken {
		t.Errorf("batched rows out of order: %+v %+v", rows[2], rows[3])
	}
	if rows[2].BestAsk == nil || !rows[2].BestAsk.Equal(dec(t, "0.55")) {
		t.Errorf("expected yes ask 0.55 after batched delta, got %v", rows[2].BestAsk)
	}
}

func TestGetState_FullSnapshot(t *testing.T) {
	tp := memTape(
		bookEvent(0, yesToken, [][2]string{{"0.44", "100"}, {"0.42", "50"}}, [][2]string{{"0.46", "100"}, {"0.48", "80"}}),
		tradeEvent(1, yesToken, "0.45"),
	)
	s := newTestSession(t, tp)

	if _, err := s.SubmitOrder(yesToken, "BUY", dec(t, "0.50"), dec(t, "50")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Step(2); err != nil {
		t.Fatalf("step: %v", err)
	}

	state := s.GetState()
	if state.Cursor != 2 || state.TotalEvents != 2 {
		t.Errorf("cursor/total = %d/%d, want 2/2", state.Cursor, state.TotalEvents)
	}
	if state.SessionID != s.ID() {
		t.Errorf("state session id %q != %q", state.SessionID, s.ID())
	}

	if len(state.Assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(state.Assets))
	}
	a := state.Assets[0]
	if a.BestBid == nil || !a.BestBid.Equal(dec(t, "0.44")) {
		t.Errorf("best bid = %v, want 0.44", a.BestBid)
	}
	// Simulated fills never consume tape liquidity, so the ask survives.
	if a.BestAsk == nil || !a.BestAsk.Equal(dec(t, "0.46")) {
		t.Errorf("best ask = %v, want 0.46", a.BestAsk)
	}
	if len(a.Bids) != 2 || len(a.Asks) != 2 {
		t.Errorf("depth = %d bids / %d asks, want 2/2", len(a.Bids), len(a.Asks))
	}
	if a.LastTrade == nil || !a.LastTrade.Equal(dec(t, "0.45")) {
		t.Errorf("last trade = %v, want 0.45", a.LastTrade)
	}

	if len(state.OpenOrders) != 0 {
		t.Errorf("expected no open orders after full fill, got %d", len(state.OpenOrders))
	}

	// 50 @ 0.46 with zero fees: cash 77, marked at bid 0.44.
	p := state.Portfolio
	if !p.Cash.Equal(dec(t, "77")) {
		t.Errorf("cash = %s, want 77", p.Cash)
	}
	if pos, ok := p.Positions[yesToken]; !ok || !pos.Equal(dec(t, "50")) {
		t.Errorf("position = %v, want 50", p.Positions)
	}
	if !p.MarkValue.Equal(dec(t, "22")) {
		t.Errorf("mark value = %s, want 22", p.MarkValue)
	}
	if !p.Equity.Equal(dec(t, "99")) {
		t.Errorf("equity = %s, want 99", p.Equity)
	}
	if !p.FeesTotal.Equal(decimal.Zero) || !p.RealizedPnL.Equal(decimal.Zero) {
		t.Errorf("fees/realized = %s/%s, want 0/0", p.FeesTotal, p.RealizedPnL)
	}
}

func TestSaveArtifacts_FullSet(t *testing.T) {
	tp := memTape(
		bookEvent(0, yesToken, [][2]string{{"0.44", "100"}}, [][2]string{{"0.46", "100"}}),
		tradeEvent(1, yesToken, "0.45"),
	)
	s := newTestSession(t, tp)

	orderID, err := s.SubmitOrder(yesToken, "BUY", dec(t, "0.50"), dec(t, "50"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Step(2); err != nil {
		t.Fatalf("step: %v", err)
	}
	// The order is already filled, so this cancel is rejected and only
	// logged.
	if err := s.CancelOrder(orderID); err == nil {
		t.Fatal("expected terminal-order cancel rejection")
	}

	dir := t.TempDir()
	if err := s.SaveArtifacts(dir); err != nil {
		t.Fatalf("save artifacts: %v", err)
	}

	lineCounts := map[string]int{
		UserActionsFile:        2,
		runner.OrdersFile:      1,
		runner.FillsFile:       1,
		runner.LedgerFile:      5,
		runner.EquityCurveFile: 5,
	}
	for name, want := range lineCounts {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		got := 0
		for _, line := range splitLines(data) {
			if len(line) > 0 {
				got++
			}
		}
		if got != want {
			t.Errorf("%s: %d lines, want %d", name, got, want)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if m.SessionID != s.ID() || m.Mode != ModeSession {
		t.Errorf("identity wrong: %+v", m)
	}
	if m.TapeDir != tp.Dir || m.Cursor != 2 || m.TotalEvents != 2 {
		t.Errorf("cursor block wrong: %+v", m)
	}
	if m.Counts != (Counts{EventsStepped: 2, TimelineRows: 1, Orders: 1, Fills: 1, UserActions: 2}) {
		t.Errorf("counts = %+v", m.Counts)
	}
	if m.Latency.SubmitTicks != 0 || m.Latency.CancelTicks != 0 {
		t.Errorf("session latency must be zero, got %+v", m.Latency)
	}
	if m.MarkMethod != "bid" || m.PricingSource != "tape" {
		t.Errorf("mark/pricing = %s/%s", m.MarkMethod, m.PricingSource)
	}
	if m.RunQuality != runner.QualityOK {
		t.Errorf("quality = %s, want ok", m.RunQuality)
	}
	if !m.Portfolio.Equity.Equal(dec(t, "99")) {
		t.Errorf("manifest equity = %s, want 99", m.Portfolio.Equity)
	}

	// Saving again overwrites in place.
	if err := s.SaveArtifacts(dir); err != nil {
		t.Fatalf("second save: %v", err)
	}
}

func TestStep_StrictBookError(t *testing.T) {
	delta := types.Event{
		ParserVersion: types.ParserVersion,
		Seq:           0,
		TsRecv:        0.5,
		EventType:     types.EventTypePriceChange,
		AssetID:       yesToken,
		Changes:       []types.Change{{Side: "SELL", Price: "0.46", Size: "10"}},
	}
	tp := memTape(delta)

	strict, err := New(&Config{Tape: tp, StartingCash: decimal.NewFromInt(100), StrictBooks: true})
	if err != nil {
		t.Fatalf("create strict session: %v", err)
	}
	n, err := strict.Step(1)
	if !errors.Is(err, types.ErrBookNotInitialized) {
		t.Fatalf("expected ErrBookNotInitialized, got %v", err)
	}
	if n != 0 || strict.Cursor() != 0 {
		t.Errorf("cursor must stay before the failing event, got n=%d cursor=%d", n, strict.Cursor())
	}

	lenient := newTestSession(t, tp)
	if _, err := lenient.Step(1); err != nil {
		t.Fatalf("lenient step: %v", err)
	}
	if len(lenient.Warnings()) == 0 {
		t.Error("expected a skipped-delta warning in lenient mode")
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

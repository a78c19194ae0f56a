package strategy

import (
	"testing"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/pkg/types"
)

const (
	yesToken = "yes-token-1"
	noToken  = "no-token-1"
)

func newArbWatch(t *testing.T, cfg string) *ArbWatch {
	t.Helper()
	s, err := NewArbWatch(json.RawMessage(cfg), zap.NewNop())
	if err != nil {
		t.Fatalf("NewArbWatch(%s) error: %v", cfg, err)
	}
	aw, ok := s.(*ArbWatch)
	if !ok {
		t.Fatalf("NewArbWatch returned %T", s)
	}
	return aw
}

// pairCtx builds a context for a book event on the YES asset with both
// watched books present.
func pairCtx(t *testing.T, seq int64, yes, no BBO) *Context {
	t.Helper()
	return &Context{
		Event:  &types.Event{EventType: types.EventTypeBook, AssetID: yesToken},
		Seq:    seq,
		TsRecv: float64(seq) + 0.5,
		BestByAsset: map[string]BBO{
			yesToken: yes,
			noToken:  no,
		},
	}
}

func TestArbWatch_ConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     string
		wantErr bool
	}{
		{name: "pair_only_uses_defaults", cfg: `{"yes_asset_id": "y", "no_asset_id": "n"}`},
		{
			name: "full_config",
			cfg:  `{"yes_asset_id": "y", "no_asset_id": "n", "threshold": "0.97", "min_size": "5", "max_size": "200", "taker_fee_bps": 20, "paper_trade": true}`,
		},
		{name: "missing_pair", cfg: `{}`, wantErr: true},
		{name: "missing_no", cfg: `{"yes_asset_id": "y"}`, wantErr: true},
		{name: "same_asset_twice", cfg: `{"yes_asset_id": "y", "no_asset_id": "y"}`, wantErr: true},
		{name: "zero_threshold", cfg: `{"yes_asset_id": "y", "no_asset_id": "n", "threshold": "0"}`, wantErr: true},
		{name: "threshold_above_one", cfg: `{"yes_asset_id": "y", "no_asset_id": "n", "threshold": "1.01"}`, wantErr: true},
		{name: "negative_min_size", cfg: `{"yes_asset_id": "y", "no_asset_id": "n", "min_size": "-1"}`, wantErr: true},
		{name: "max_below_min", cfg: `{"yes_asset_id": "y", "no_asset_id": "n", "min_size": "50", "max_size": "10"}`, wantErr: true},
		{name: "negative_fee", cfg: `{"yes_asset_id": "y", "no_asset_id": "n", "taker_fee_bps": -1}`, wantErr: true},
		{name: "not_json", cfg: `{broken`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArbWatch(json.RawMessage(tt.cfg), zap.NewNop())
			if tt.wantErr && err == nil {
				t.Errorf("NewArbWatch(%s) = nil error, want failure", tt.cfg)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("NewArbWatch(%s) error: %v", tt.cfg, err)
			}
		})
	}
}

func TestArbWatch_RecordsOpportunity(t *testing.T) {
	s := newArbWatch(t, `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1"}`)
	s.OnStart(yesToken, dec(t, "1000"))

	intents := s.OnEvent(pairCtx(t, 3,
		bbo(t, "0.44", "100", "0.45", "60"),
		bbo(t, "0.49", "100", "0.50", "80")))
	if len(intents) != 0 {
		t.Errorf("watch-only run emitted intents: %v", intents)
	}

	opps := s.Opportunities()
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}

	opp := opps[0]
	if opp.Seq != 3 || opp.YesAssetID != yesToken || opp.NoAssetID != noToken {
		t.Errorf("opportunity header = %+v", opp)
	}
	if !opp.PriceSum.Equal(dec(t, "0.95")) {
		t.Errorf("PriceSum = %s, want 0.95", opp.PriceSum)
	}
	if !opp.ProfitMargin.Equal(dec(t, "0.05")) {
		t.Errorf("ProfitMargin = %s, want 0.05", opp.ProfitMargin)
	}
	if opp.ProfitBPS != 500 {
		t.Errorf("ProfitBPS = %d, want 500", opp.ProfitBPS)
	}
	if !opp.MaxSize.Equal(dec(t, "60")) {
		t.Errorf("MaxSize = %s, want 60 (smaller ask)", opp.MaxSize)
	}
	if !opp.GrossProfit.Equal(dec(t, "3")) {
		t.Errorf("GrossProfit = %s, want 3", opp.GrossProfit)
	}
	if !opp.TotalFees.IsZero() {
		t.Errorf("TotalFees = %s, want 0", opp.TotalFees)
	}
	if !opp.NetProfit.Equal(dec(t, "3")) {
		t.Errorf("NetProfit = %s, want 3", opp.NetProfit)
	}
	if opp.NetProfitBPS != 500 {
		t.Errorf("NetProfitBPS = %d, want 500", opp.NetProfitBPS)
	}
}

func TestArbWatch_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		cfg    string
		yes    [4]string // bid, bidSize, ask, askSize
		no     [4]string
		reason string
	}{
		{
			name:   "price_above_threshold",
			cfg:    `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1"}`,
			yes:    [4]string{"0.49", "10", "0.50", "10"},
			no:     [4]string{"0.49", "10", "0.50", "10"},
			reason: rejectAboveThreshold,
		},
		{
			name:   "below_min_size",
			cfg:    `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1", "min_size": "10"}`,
			yes:    [4]string{"", "", "0.45", "5"},
			no:     [4]string{"", "", "0.50", "8"},
			reason: rejectBelowMinSize,
		},
		{
			name:   "missing_ask_size",
			cfg:    `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1"}`,
			yes:    [4]string{"", "", "0.45", ""},
			no:     [4]string{"", "", "0.50", "10"},
			reason: rejectInvalidSize,
		},
		{
			name:   "negative_profit_after_fees",
			cfg:    `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1", "taker_fee_bps": 300}`,
			yes:    [4]string{"", "", "0.48", "10"},
			no:     [4]string{"", "", "0.50", "10"},
			reason: rejectNegativeProfit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newArbWatch(t, tt.cfg)
			s.OnStart(yesToken, dec(t, "1000"))

			s.OnEvent(pairCtx(t, 1,
				bbo(t, tt.yes[0], tt.yes[1], tt.yes[2], tt.yes[3]),
				bbo(t, tt.no[0], tt.no[1], tt.no[2], tt.no[3])))

			if got := len(s.Opportunities()); got != 0 {
				t.Fatalf("got %d opportunities, want 0", got)
			}
			counts := s.RejectionCounts()
			if counts[tt.reason] != 1 {
				t.Errorf("RejectionCounts() = %v, want %q == 1", counts, tt.reason)
			}
		})
	}
}

func TestArbWatch_SizeCappedByConfig(t *testing.T) {
	s := newArbWatch(t, `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1", "max_size": "1000"}`)
	s.OnStart(yesToken, dec(t, "1000"))

	s.OnEvent(pairCtx(t, 1,
		bbo(t, "", "", "0.45", "5000"),
		bbo(t, "", "", "0.50", "4000")))

	opps := s.Opportunities()
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}
	if !opps[0].MaxSize.Equal(dec(t, "1000")) {
		t.Errorf("MaxSize = %s, want capped 1000", opps[0].MaxSize)
	}
}

func TestArbWatch_IgnoresUnrelatedEvents(t *testing.T) {
	s := newArbWatch(t, `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1"}`)
	s.OnStart(yesToken, dec(t, "1000"))

	ctx := pairCtx(t, 1,
		bbo(t, "", "", "0.45", "60"),
		bbo(t, "", "", "0.50", "80"))
	ctx.Event = &types.Event{EventType: types.EventTypeBook, AssetID: "other-token"}

	s.OnEvent(ctx)
	if got := len(s.Opportunities()); got != 0 {
		t.Errorf("unrelated event produced %d opportunities", got)
	}
	if got := len(s.RejectionCounts()); got != 0 {
		t.Errorf("unrelated event produced rejections: %v", s.RejectionCounts())
	}
}

func TestArbWatch_BatchedEventTouchesPair(t *testing.T) {
	s := newArbWatch(t, `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1"}`)
	s.OnStart(yesToken, dec(t, "1000"))

	ctx := pairCtx(t, 1,
		bbo(t, "", "", "0.45", "60"),
		bbo(t, "", "", "0.50", "80"))
	ctx.Event = &types.Event{
		EventType: types.EventTypePriceChange,
		PriceChanges: []types.PriceChange{
			{AssetID: noToken, Price: "0.50", Size: "80", Side: types.SideSell},
		},
	}

	s.OnEvent(ctx)
	if got := len(s.Opportunities()); got != 1 {
		t.Errorf("batched event on watched asset: got %d opportunities, want 1", got)
	}
}

func TestArbWatch_PaperTradeOneShot(t *testing.T) {
	s := newArbWatch(t, `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1", "paper_trade": true}`)
	s.OnStart(yesToken, dec(t, "1000"))

	intents := s.OnEvent(pairCtx(t, 1,
		bbo(t, "", "", "0.45", "60"),
		bbo(t, "", "", "0.50", "80")))
	if len(intents) != 2 {
		t.Fatalf("got %d intents, want 2 legs", len(intents))
	}

	yesLeg, noLeg := intents[0], intents[1]
	if yesLeg.AssetID != yesToken || yesLeg.Side != types.SideBuy || !yesLeg.LimitPrice.Equal(dec(t, "0.45")) {
		t.Errorf("yes leg = %+v", yesLeg)
	}
	if noLeg.AssetID != noToken || noLeg.Side != types.SideBuy || !noLeg.LimitPrice.Equal(dec(t, "0.50")) {
		t.Errorf("no leg = %+v", noLeg)
	}
	if !yesLeg.Size.Equal(dec(t, "60")) || !noLeg.Size.Equal(dec(t, "60")) {
		t.Errorf("leg sizes = %s/%s, want 60/60", yesLeg.Size, noLeg.Size)
	}

	// The second opportunity is still recorded but trades nothing.
	intents = s.OnEvent(pairCtx(t, 2,
		bbo(t, "", "", "0.44", "60"),
		bbo(t, "", "", "0.50", "80")))
	if len(intents) != 0 {
		t.Errorf("second opportunity emitted intents: %v", intents)
	}
	if got := len(s.Opportunities()); got != 2 {
		t.Errorf("got %d opportunities, want 2", got)
	}
}

func TestArbWatch_Summary(t *testing.T) {
	s := newArbWatch(t, `{"yes_asset_id": "yes-token-1", "no_asset_id": "no-token-1"}`)
	s.OnStart(yesToken, dec(t, "1000"))

	// One opportunity, one threshold rejection.
	s.OnEvent(pairCtx(t, 1,
		bbo(t, "", "", "0.45", "60"),
		bbo(t, "", "", "0.50", "80")))
	s.OnEvent(pairCtx(t, 2,
		bbo(t, "", "", "0.50", "60"),
		bbo(t, "", "", "0.50", "80")))

	summary := s.ModeledArbSummary()
	if summary["opportunities_detected"] != 1 {
		t.Errorf("opportunities_detected = %v, want 1", summary["opportunities_detected"])
	}
	if summary["candidates_rejected"] != 1 {
		t.Errorf("candidates_rejected = %v, want 1", summary["candidates_rejected"])
	}
	if summary["total_modeled_net_profit"] != "3" {
		t.Errorf("total_modeled_net_profit = %v, want \"3\"", summary["total_modeled_net_profit"])
	}
	if summary["threshold"] != "0.99" {
		t.Errorf("threshold = %v, want \"0.99\"", summary["threshold"])
	}
	s.OnFinish()
}

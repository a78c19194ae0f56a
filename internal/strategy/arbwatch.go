package strategy

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// NameArbWatch is the registry name of the arbitrage watcher.
const NameArbWatch = "arb_watch"

// Rejection reasons for candidates that never become opportunities.
const (
	rejectInvalidPrice   = "invalid_price"
	rejectInvalidSize    = "invalid_size"
	rejectAboveThreshold = "price_above_threshold"
	rejectBelowMinSize   = "below_min_size"
	rejectNegativeProfit = "negative_profit_after_fees"
)

// ArbWatchConfig configures arb_watch. The YES/NO pair is mandatory;
// everything else has defaults: threshold 0.99, sizes 1..1000, no fee,
// watch-only.
type ArbWatchConfig struct {
	YesAssetID  string          `json:"yes_asset_id"`
	NoAssetID   string          `json:"no_asset_id"`
	Threshold   decimal.Decimal `json:"threshold"`
	MinSize     decimal.Decimal `json:"min_size"`
	MaxSize     decimal.Decimal `json:"max_size"`
	TakerFeeBps int64           `json:"taker_fee_bps"`
	PaperTrade  bool            `json:"paper_trade"`
}

// ArbWatch watches a YES/NO outcome pair for the classic binary-market
// mispricing: both asks summing below 1. Every qualifying sighting is
// recorded as an Opportunity with full fee accounting; candidates that
// fail a check are counted per reason. With PaperTrade set it also
// submits one pair of marketable BUY intents at the first opportunity,
// once per run.
type ArbWatch struct {
	cfg        ArbWatchConfig
	logger     *zap.Logger
	opps       []Opportunity
	rejections map[string]int
	totalNet   decimal.Decimal
	bestNetBPS int64
	inFlight   bool
	fills      int
}

// NewArbWatch builds the arbitrage watcher from cfg.
func NewArbWatch(cfg json.RawMessage, logger *zap.Logger) (Strategy, error) {
	conf := ArbWatchConfig{
		Threshold: decimal.NewFromFloat(0.99),
		MinSize:   decimal.NewFromInt(1),
		MaxSize:   decimal.NewFromInt(1000),
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &conf); err != nil {
			return nil, fmt.Errorf("arb_watch config: %w", err)
		}
	}

	if conf.YesAssetID == "" || conf.NoAssetID == "" {
		return nil, fmt.Errorf("arb_watch config: yes_asset_id and no_asset_id are required")
	}
	if conf.YesAssetID == conf.NoAssetID {
		return nil, fmt.Errorf("arb_watch config: yes_asset_id and no_asset_id must differ")
	}
	if conf.Threshold.Sign() <= 0 || conf.Threshold.GreaterThan(one) {
		return nil, fmt.Errorf("arb_watch config: threshold must be in (0, 1], got %s", conf.Threshold)
	}
	if conf.MinSize.Sign() < 0 {
		return nil, fmt.Errorf("arb_watch config: min_size must not be negative, got %s", conf.MinSize)
	}
	if conf.MaxSize.Sign() <= 0 || conf.MaxSize.LessThan(conf.MinSize) {
		return nil, fmt.Errorf("arb_watch config: max_size must be positive and at least min_size, got %s", conf.MaxSize)
	}
	if conf.TakerFeeBps < 0 {
		return nil, fmt.Errorf("arb_watch config: taker_fee_bps must not be negative, got %d", conf.TakerFeeBps)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArbWatch{
		cfg:        conf,
		logger:     logger,
		rejections: make(map[string]int),
	}, nil
}

// OnStart implements Strategy.
func (s *ArbWatch) OnStart(primaryAsset string, cash decimal.Decimal) {
	s.logger.Info("arb-watch-starting",
		zap.String("yes-asset", s.cfg.YesAssetID),
		zap.String("no-asset", s.cfg.NoAssetID),
		zap.String("threshold", s.cfg.Threshold.String()),
		zap.Bool("paper-trade", s.cfg.PaperTrade))
}

// OnEvent implements Strategy. Only events touching one of the watched
// assets are evaluated; everything else passes through untouched.
func (s *ArbWatch) OnEvent(ctx *Context) []OrderIntent {
	if !s.touches(ctx.Event) {
		return nil
	}

	yes, yesOK := ctx.BestByAsset[s.cfg.YesAssetID]
	no, noOK := ctx.BestByAsset[s.cfg.NoAssetID]
	if !yesOK || !noOK || yes.BestAsk == nil || no.BestAsk == nil {
		return nil
	}

	opp, ok := s.evaluate(ctx.Seq, ctx.TsRecv, yes, no)
	if !ok {
		return nil
	}

	s.opps = append(s.opps, opp)
	s.totalNet = s.totalNet.Add(opp.NetProfit)
	if opp.NetProfitBPS > s.bestNetBPS {
		s.bestNetBPS = opp.NetProfitBPS
	}
	ArbOpportunitiesTotal.Inc()
	ArbNetProfitBPS.Observe(float64(opp.NetProfitBPS))
	s.logger.Info("arb-opportunity-recorded",
		zap.Int64("seq", opp.Seq),
		zap.String("yes-ask", opp.YesAsk.String()),
		zap.String("no-ask", opp.NoAsk.String()),
		zap.String("price-sum", opp.PriceSum.String()),
		zap.String("size", opp.MaxSize.String()),
		zap.String("net-profit", opp.NetProfit.String()),
		zap.Int64("net-profit-bps", opp.NetProfitBPS))

	if !s.cfg.PaperTrade || s.inFlight {
		return nil
	}
	s.inFlight = true

	yesLeg := Submit(s.cfg.YesAssetID, types.SideBuy, opp.YesAsk, opp.MaxSize)
	yesLeg.Reason = "paper-arb-yes-leg"
	noLeg := Submit(s.cfg.NoAssetID, types.SideBuy, opp.NoAsk, opp.MaxSize)
	noLeg.Reason = "paper-arb-no-leg"
	IntentsEmittedTotal.WithLabelValues(NameArbWatch, ActionSubmit).Add(2)
	return []OrderIntent{yesLeg, noLeg}
}

// OnFill implements Strategy.
func (s *ArbWatch) OnFill(fill sim.FillRecord) {
	s.fills++
	s.logger.Info("arb-watch-paper-fill",
		zap.String("order-id", fill.OrderID),
		zap.String("asset-id", fill.AssetID),
		zap.String("fill-price", fill.FillPrice.String()),
		zap.String("fill-size", fill.FillSize.String()))
}

// OnFinish implements Strategy.
func (s *ArbWatch) OnFinish() {
	s.logger.Info("arb-watch-finished",
		zap.Int("opportunities", len(s.opps)),
		zap.String("total-modeled-net-profit", s.totalNet.String()),
		zap.Int64("best-net-profit-bps", s.bestNetBPS))
}

// Opportunities implements OpportunityProvider.
func (s *ArbWatch) Opportunities() []Opportunity {
	out := make([]Opportunity, len(s.opps))
	copy(out, s.opps)
	return out
}

// RejectionCounts implements RejectionCounter.
func (s *ArbWatch) RejectionCounts() map[string]int {
	out := make(map[string]int, len(s.rejections))
	for reason, n := range s.rejections {
		out[reason] = n
	}
	return out
}

// ModeledArbSummary implements ArbSummarizer.
func (s *ArbWatch) ModeledArbSummary() map[string]any {
	rejected := 0
	for _, n := range s.rejections {
		rejected += n
	}
	return map[string]any{
		"opportunities_detected":   len(s.opps),
		"candidates_rejected":      rejected,
		"total_modeled_net_profit": s.totalNet.String(),
		"best_net_profit_bps":      s.bestNetBPS,
		"threshold":                s.cfg.Threshold.String(),
		"paper_trade":              s.cfg.PaperTrade,
	}
}

func (s *ArbWatch) touches(ev *types.Event) bool {
	if ev == nil {
		return false
	}
	for _, id := range ev.AssetIDs() {
		if id == s.cfg.YesAssetID || id == s.cfg.NoAssetID {
			return true
		}
	}
	return false
}

// evaluate runs one candidate through the detection pipeline: validate
// both asks, check the price sum against the threshold, find the
// executable size, then account for taker fees.
func (s *ArbWatch) evaluate(seq int64, tsRecv float64, yes, no BBO) (Opportunity, bool) {
	yesAsk := *yes.BestAsk
	noAsk := *no.BestAsk

	if yesAsk.Sign() <= 0 || noAsk.Sign() <= 0 {
		s.reject(rejectInvalidPrice)
		return Opportunity{}, false
	}
	if yes.BestAskSize == nil || no.BestAskSize == nil ||
		yes.BestAskSize.Sign() <= 0 || no.BestAskSize.Sign() <= 0 {
		s.reject(rejectInvalidSize)
		return Opportunity{}, false
	}

	priceSum := yesAsk.Add(noAsk)
	if priceSum.GreaterThanOrEqual(s.cfg.Threshold) {
		s.reject(rejectAboveThreshold)
		return Opportunity{}, false
	}

	// The smaller ask is the bottleneck for buying both legs.
	size := *yes.BestAskSize
	if no.BestAskSize.LessThan(size) {
		size = *no.BestAskSize
	}
	if size.GreaterThan(s.cfg.MaxSize) {
		size = s.cfg.MaxSize
	}
	if size.LessThan(s.cfg.MinSize) {
		s.reject(rejectBelowMinSize)
		return Opportunity{}, false
	}

	margin := one.Sub(priceSum)
	gross := margin.Mul(size)
	fees := priceSum.Mul(size).Mul(decimal.NewFromInt(s.cfg.TakerFeeBps)).Shift(-4)
	net := gross.Sub(fees)
	if net.Sign() <= 0 {
		s.reject(rejectNegativeProfit)
		return Opportunity{}, false
	}

	return Opportunity{
		Seq:          seq,
		TsRecv:       tsRecv,
		YesAssetID:   s.cfg.YesAssetID,
		NoAssetID:    s.cfg.NoAssetID,
		YesAsk:       yesAsk,
		NoAsk:        noAsk,
		PriceSum:     priceSum,
		ProfitMargin: margin,
		ProfitBPS:    margin.Shift(4).IntPart(),
		MaxSize:      size,
		GrossProfit:  gross,
		TotalFees:    fees,
		NetProfit:    net,
		NetProfitBPS: net.Div(size).Shift(4).IntPart(),
	}, true
}

func (s *ArbWatch) reject(reason string) {
	s.rejections[reason]++
	ArbRejectionsTotal.WithLabelValues(reason).Inc()
}

package strategy

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// NameTakeBest is the registry name of the take-best strategy.
const NameTakeBest = "take_best"

// TakeBestConfig configures take_best. Absent keys keep their defaults:
// BUY 10 shares crossing the ask by 0.01.
type TakeBestConfig struct {
	Side        string          `json:"side"`
	Size        decimal.Decimal `json:"size"`
	PriceOffset decimal.Decimal `json:"price_offset"`
}

// TakeBest submits one marketable limit order at the first sighting of
// the primary asset's far side and then goes quiet. A BUY crosses the
// best ask plus the offset, a SELL crosses the best bid minus it; the
// limit is clamped into (0, 1].
type TakeBest struct {
	cfg       TakeBestConfig
	logger    *zap.Logger
	asset     string
	submitted bool
	fills     int
}

// NewTakeBest builds the take-best strategy from cfg.
func NewTakeBest(cfg json.RawMessage, logger *zap.Logger) (Strategy, error) {
	conf := TakeBestConfig{
		Side:        types.SideBuy,
		Size:        decimal.NewFromInt(10),
		PriceOffset: decimal.NewFromFloat(0.01),
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &conf); err != nil {
			return nil, fmt.Errorf("take_best config: %w", err)
		}
	}

	if !types.ValidSide(conf.Side) {
		return nil, fmt.Errorf("take_best config: invalid side %q", conf.Side)
	}
	if conf.Size.Sign() <= 0 {
		return nil, fmt.Errorf("take_best config: size must be positive, got %s", conf.Size)
	}
	if conf.PriceOffset.Sign() < 0 {
		return nil, fmt.Errorf("take_best config: price_offset must not be negative, got %s", conf.PriceOffset)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &TakeBest{cfg: conf, logger: logger}, nil
}

// OnStart implements Strategy.
func (s *TakeBest) OnStart(primaryAsset string, cash decimal.Decimal) {
	s.asset = primaryAsset
	s.logger.Info("take-best-starting",
		zap.String("primary-asset", primaryAsset),
		zap.String("side", s.cfg.Side),
		zap.String("size", s.cfg.Size.String()),
		zap.String("price-offset", s.cfg.PriceOffset.String()))
}

// OnEvent implements Strategy.
func (s *TakeBest) OnEvent(ctx *Context) []OrderIntent {
	if s.submitted {
		return nil
	}

	var limit decimal.Decimal
	switch s.cfg.Side {
	case types.SideBuy:
		if ctx.BestAsk == nil {
			return nil
		}
		limit = ctx.BestAsk.Add(s.cfg.PriceOffset)
		if limit.GreaterThan(one) {
			limit = one
		}
	case types.SideSell:
		if ctx.BestBid == nil {
			return nil
		}
		limit = ctx.BestBid.Sub(s.cfg.PriceOffset)
		if limit.Sign() <= 0 {
			limit = *ctx.BestBid
		}
	}

	s.submitted = true
	IntentsEmittedTotal.WithLabelValues(NameTakeBest, ActionSubmit).Inc()

	intent := Submit(s.asset, s.cfg.Side, limit, s.cfg.Size)
	intent.Reason = "first-bbo-sighting"
	return []OrderIntent{intent}
}

// OnFill implements Strategy.
func (s *TakeBest) OnFill(fill sim.FillRecord) {
	s.fills++
	s.logger.Info("take-best-filled",
		zap.String("order-id", fill.OrderID),
		zap.String("fill-price", fill.FillPrice.String()),
		zap.String("fill-size", fill.FillSize.String()),
		zap.String("remaining", fill.Remaining.String()))
}

// OnFinish implements Strategy.
func (s *TakeBest) OnFinish() {
	s.logger.Info("take-best-finished",
		zap.Bool("submitted", s.submitted),
		zap.Int("fills", s.fills))
}

package strategy

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/sim"
)

// NameNoop is the registry name of the no-op strategy.
const NameNoop = "noop"

// Noop observes the run without ever trading. It is the baseline for
// zero-trade ledgers: the equity curve it leaves behind is exactly the
// initial and final rows.
type Noop struct {
	logger *zap.Logger
	events int64
}

// NewNoop builds the no-op strategy. It takes no options; a non-empty
// config is rejected so that a misdirected config does not silently
// vanish.
func NewNoop(cfg json.RawMessage, logger *zap.Logger) (Strategy, error) {
	var keys map[string]json.RawMessage
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &keys); err != nil {
			return nil, fmt.Errorf("noop config: %w", err)
		}
	}
	if len(keys) > 0 {
		return nil, fmt.Errorf("noop config: takes no options, got %d", len(keys))
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Noop{logger: logger}, nil
}

// OnStart implements Strategy.
func (s *Noop) OnStart(primaryAsset string, cash decimal.Decimal) {
	s.logger.Info("noop-starting",
		zap.String("primary-asset", primaryAsset),
		zap.String("cash", cash.String()))
}

// OnEvent implements Strategy. It never emits an intent.
func (s *Noop) OnEvent(*Context) []OrderIntent {
	s.events++
	return nil
}

// OnFill implements Strategy.
func (s *Noop) OnFill(sim.FillRecord) {}

// OnFinish implements Strategy.
func (s *Noop) OnFinish() {
	s.logger.Info("noop-finished", zap.Int64("events-seen", s.events))
}

package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/portfolio"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/storage"
	"github.com/mselser95/polymarket-sim/internal/strategy"
	"github.com/mselser95/polymarket-sim/internal/tape"
)

// Config holds replay configuration.
type Config struct {
	TapeDir        string
	OutDir         string
	StrategyName   string
	StrategyConfig json.RawMessage

	// PrimaryAsset selects whose book drives the timeline and the final
	// marks; empty picks the first asset seen on the tape.
	PrimaryAsset string

	StartingCash decimal.Decimal
	FeeRateBps   int
	MarkMethod   string
	Latency      sim.LatencyModel
	StrictBooks  bool

	// RunID defaults to a fresh uuid.
	RunID  string
	Logger *zap.Logger

	// Storage, when set, receives the run summary row after the
	// artifacts are written. Persistence failures are warnings, not run
	// failures.
	Storage storage.Storage
}

// Result summarizes a finished run for the caller.
type Result struct {
	RunID    string
	OutDir   string
	Summary  portfolio.Summary
	Quality  string
	Events   int64
	Fills    int
	Warnings int
}

// Runner replays one tape through one strategy and writes the full
// artifact set into OutDir. A Runner is single-use.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

// New validates static configuration. Tape and strategy problems only
// surface in Run, before any artifact is written.
func New(cfg *Config) (*Runner, error) {
	if cfg.TapeDir == "" {
		return nil, fmt.Errorf("tape dir is required")
	}
	if cfg.OutDir == "" {
		return nil, fmt.Errorf("out dir is required")
	}
	if cfg.StrategyName == "" {
		return nil, fmt.Errorf("strategy name is required")
	}
	if cfg.StartingCash.Sign() < 0 {
		return nil, fmt.Errorf("starting cash cannot be negative, got %s", cfg.StartingCash)
	}
	if cfg.FeeRateBps < 0 {
		return nil, fmt.Errorf("fee rate cannot be negative, got %d bps", cfg.FeeRateBps)
	}
	switch cfg.MarkMethod {
	case "", portfolio.MarkMethodBid, portfolio.MarkMethodMidpoint:
	default:
		return nil, fmt.Errorf("invalid mark method %q", cfg.MarkMethod)
	}
	if cfg.Latency.SubmitTicks < 0 || cfg.Latency.CancelTicks < 0 {
		return nil, fmt.Errorf("latency ticks cannot be negative")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: *cfg, logger: logger}, nil
}

// Run replays the tape. Event-level problems become run warnings; only
// setup failures, strict-mode book errors and artifact write errors
// abort the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	tp, err := tape.Load(r.cfg.TapeDir, r.logger)
	if err != nil {
		return nil, err
	}

	strat, err := strategy.New(r.cfg.StrategyName, r.cfg.StrategyConfig, r.logger)
	if err != nil {
		return nil, err
	}

	assetIDs := tp.AssetIDs()
	if len(assetIDs) == 0 {
		return nil, fmt.Errorf("tape %s names no assets", r.cfg.TapeDir)
	}
	primary := r.cfg.PrimaryAsset
	if primary == "" {
		primary = assetIDs[0]
	} else if !containsString(assetIDs, primary) {
		return nil, fmt.Errorf("primary asset %s not on tape (tape has %s)",
			primary, strings.Join(assetIDs, ", "))
	}

	runID := r.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	sinks, err := OpenSinks(r.cfg.OutDir)
	if err != nil {
		return nil, err
	}
	defer sinks.Close()

	broker := sim.New(&sim.Config{Latency: r.cfg.Latency, Logger: r.logger})
	eng := NewEngine(&EngineConfig{
		PrimaryAsset: primary,
		Strategy:     strat,
		Broker:       broker,
		StrictBooks:  r.cfg.StrictBooks,
		Sinks:        sinks.Sinks(),
		Logger:       r.logger,
	})
	for _, assetID := range assetIDs {
		eng.EnsureBook(assetID)
	}

	r.logger.Info("replay-starting",
		zap.String("run-id", runID),
		zap.String("tape-dir", r.cfg.TapeDir),
		zap.String("strategy", r.cfg.StrategyName),
		zap.String("primary-asset", primary),
		zap.Int("events", len(tp.Events)))
	startedAt := time.Now().UTC()

	eng.Start(r.cfg.StartingCash)
	for i := range tp.Events {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay interrupted: %w", err)
		}
		if err := eng.ProcessEvent(&tp.Events[i]); err != nil {
			return nil, err
		}
	}
	eng.Finish()

	ledger := portfolio.New(&portfolio.Config{
		StartingCash:  r.cfg.StartingCash,
		FeeRateBps:    r.cfg.FeeRateBps,
		MarkMethod:    r.cfg.MarkMethod,
		PricingSource: portfolio.PricingSourceTape,
		Logger:        r.logger,
	})
	first, last := tp.First(), tp.Last()
	bounds := portfolio.Bounds{
		FirstSeq: first.Seq, FirstTs: first.TsRecv,
		LastSeq: last.Seq, LastTs: last.TsRecv,
	}
	rows := ledger.Compute(broker.OrderEvents(), eng.Timeline(), bounds)
	curve := portfolio.EquityCurve(rows)

	finalBBO := eng.PrimaryBBO()
	summary := ledger.Summary(runID, finalBBO.BestBid, finalBBO.BestAsk)

	var opps []strategy.Opportunity
	if p, ok := strat.(strategy.OpportunityProvider); ok {
		opps = p.Opportunities()
	}

	warnings := append(append([]string{}, tp.Warnings...), eng.Warnings()...)
	quality, inline, total := QualityFor(warnings)

	cfgJSON := r.cfg.StrategyConfig
	if len(cfgJSON) == 0 {
		cfgJSON = json.RawMessage("{}")
	}
	orders := broker.Orders()
	manifest := &RunManifest{
		RunID:          runID,
		Mode:           ModeReplay,
		StartedAt:      startedAt.Format(time.RFC3339),
		FinishedAt:     time.Now().UTC().Format(time.RFC3339),
		TapeDir:        r.cfg.TapeDir,
		PrimaryAsset:   primary,
		AssetIDs:       assetIDs,
		Strategy:       r.cfg.StrategyName,
		StrategyConfig: cfgJSON,
		StartingCash:   r.cfg.StartingCash,
		FeeRateBps:     r.cfg.FeeRateBps,
		MarkMethod:     summary.MarkMethod,
		PricingSource:  summary.PricingSource,
		Latency:        r.cfg.Latency,
		StrictBooks:    r.cfg.StrictBooks,
		Counts: RunCounts{
			Events:        eng.EventsProcessed(),
			TimelineRows:  len(eng.Timeline()),
			Decisions:     eng.Decisions(),
			Orders:        len(orders),
			Fills:         len(broker.Fills()),
			Opportunities: len(opps),
		},
		RunQuality:    quality,
		Warnings:      inline,
		WarningsTotal: total,
	}
	if rc, ok := strat.(strategy.RejectionCounter); ok {
		manifest.RejectionCounts = rc.RejectionCounts()
	}
	if as, ok := strat.(strategy.ArbSummarizer); ok {
		manifest.ModeledArbSummary = as.ModeledArbSummary()
	}

	meta := &RunMeta{
		RunID:           runID,
		Mode:            ModeReplay,
		TapeDir:         r.cfg.TapeDir,
		EventsLoaded:    len(tp.Events),
		EventsProcessed: eng.EventsProcessed(),
		AssetIDs:        assetIDs,
		Warnings:        tp.Warnings,
	}
	if meta.Warnings == nil {
		meta.Warnings = []string{}
	}

	if err := sinks.Close(); err != nil {
		return nil, fmt.Errorf("close streamed artifacts: %w", err)
	}
	if err := WriteFinalArtifacts(r.cfg.OutDir, orders, rows, curve, opps, &summary, manifest, meta); err != nil {
		return nil, err
	}

	if r.cfg.Storage != nil {
		if err := r.cfg.Storage.SaveRunSummary(ctx, StorageRecord(manifest, &summary)); err != nil {
			r.logger.Warn("run-summary-store-failed",
				zap.String("run-id", runID),
				zap.Error(err))
		}
	}

	RunsTotal.WithLabelValues(ModeReplay, quality).Inc()
	RunDurationSeconds.Observe(time.Since(start).Seconds())
	r.logger.Info("replay-complete",
		zap.String("run-id", runID),
		zap.String("out-dir", r.cfg.OutDir),
		zap.Int64("events", eng.EventsProcessed()),
		zap.Int("fills", len(broker.Fills())),
		zap.String("run-quality", quality),
		zap.String("net-profit", summary.NetProfit.String()),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		RunID:    runID,
		OutDir:   r.cfg.OutDir,
		Summary:  summary,
		Quality:  quality,
		Events:   eng.EventsProcessed(),
		Fills:    len(broker.Fills()),
		Warnings: total,
	}, nil
}

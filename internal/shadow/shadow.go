// Package shadow runs a strategy against the live market feed without
// placing real orders. The pipeline is the replay engine's; only the
// event source differs, so a shadow session and a later replay of its
// tee recording see identical semantics.
package shadow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/internal/jsonl"
	"github.com/mselser95/polymarket-sim/internal/portfolio"
	"github.com/mselser95/polymarket-sim/internal/runner"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/storage"
	"github.com/mselser95/polymarket-sim/internal/strategy"
	"github.com/mselser95/polymarket-sim/internal/tape"
)

// mirrorDepth is how many levels per side the live book mirror retains.
const mirrorDepth = 5

// Config holds shadow run configuration.
type Config struct {
	OutDir string

	// AssetIDs is the subscription set. Books exist for all of them from
	// the start.
	AssetIDs []string
	// PrimaryAsset defaults to the first subscribed asset.
	PrimaryAsset string

	StrategyName   string
	StrategyConfig json.RawMessage

	StartingCash decimal.Decimal
	FeeRateBps   int
	MarkMethod   string
	Latency      sim.LatencyModel
	StrictBooks  bool

	// MaxWSStall ends the run when no frame arrives for this long. Zero
	// disables the kill-switch.
	MaxWSStall time.Duration
	// Duration bounds the run wall clock. Zero runs until the context
	// ends or the source closes.
	Duration time.Duration

	// RecordDir tees the session into a loadable tape directory.
	RecordDir string
	// WSURL and RecvTimeout are echoed into the tee's tape meta.
	WSURL       string
	RecvTimeout time.Duration

	// Mirror, when set, receives a book snapshot after every processed
	// event for the HTTP handlers to read.
	Mirror *book.Mirror

	// Storage, when set, receives the run summary row after the
	// artifacts are written. Persistence failures are warnings, not run
	// failures.
	Storage storage.Storage

	// RunID defaults to a fresh uuid.
	RunID  string
	Logger *zap.Logger
}

// Shadow drives one live run end to end. Single-use.
type Shadow struct {
	cfg    Config
	logger *zap.Logger
}

// New validates static configuration.
func New(cfg *Config) (*Shadow, error) {
	if cfg.OutDir == "" {
		return nil, fmt.Errorf("out dir is required")
	}
	if len(cfg.AssetIDs) == 0 {
		return nil, fmt.Errorf("at least one asset id is required")
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
	if cfg.PrimaryAsset != "" && !contains(cfg.AssetIDs, cfg.PrimaryAsset) {
		return nil, fmt.Errorf("primary asset %s not in subscription set (%s)",
			cfg.PrimaryAsset, strings.Join(cfg.AssetIDs, ", "))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shadow{cfg: *cfg, logger: logger}, nil
}

// Run consumes the source until the context ends, the duration budget
// runs out, the source closes, or the stall kill-switch fires. Every
// exit path is graceful: the full artifact set is written with the exit
// reason recorded in both the manifest and meta.
func (s *Shadow) Run(ctx context.Context, src tape.Source) (*runner.Result, error) {
	start := time.Now()

	strat, err := strategy.New(s.cfg.StrategyName, s.cfg.StrategyConfig, s.logger)
	if err != nil {
		return nil, err
	}

	primary := s.cfg.PrimaryAsset
	if primary == "" {
		primary = s.cfg.AssetIDs[0]
	}
	runID := s.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	if err := os.MkdirAll(s.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	sinks, err := runner.OpenSinks(s.cfg.OutDir)
	if err != nil {
		return nil, err
	}
	defer sinks.Close()

	t, err := s.openTee()
	if err != nil {
		return nil, err
	}
	if t != nil {
		defer t.close()
	}

	broker := sim.New(&sim.Config{Latency: s.cfg.Latency, Logger: s.logger})
	eng := runner.NewEngine(&runner.EngineConfig{
		PrimaryAsset: primary,
		Strategy:     strat,
		Broker:       broker,
		StrictBooks:  s.cfg.StrictBooks,
		Sinks:        sinks.Sinks(),
		Logger:       s.logger,
	})
	for _, assetID := range s.cfg.AssetIDs {
		eng.EnsureBook(assetID)
	}

	s.logger.Info("shadow-starting",
		zap.String("run-id", runID),
		zap.String("strategy", s.cfg.StrategyName),
		zap.String("primary-asset", primary),
		zap.Int("assets", len(s.cfg.AssetIDs)),
		zap.Duration("max-ws-stall", s.cfg.MaxWSStall),
		zap.Duration("duration", s.cfg.Duration))
	startedAt := time.Now().UTC()

	norm := tape.NewNormalizer()
	var normWarnings []string

	var stall *time.Timer
	var stallC <-chan time.Time
	if s.cfg.MaxWSStall > 0 {
		stall = time.NewTimer(s.cfg.MaxWSStall)
		defer stall.Stop()
		stallC = stall.C
	}
	var durC <-chan time.Time
	if s.cfg.Duration > 0 {
		dur := time.NewTimer(s.cfg.Duration)
		defer dur.Stop()
		durC = dur.C
	}

	eng.Start(s.cfg.StartingCash)

	exitReason := ""
loop:
	for {
		select {
		case <-ctx.Done():
			exitReason = fmt.Sprintf("interrupted: %v", ctx.Err())
			break loop

		case <-durC:
			exitReason = "duration_elapsed"
			break loop

		case <-stallC:
			exitReason = fmt.Sprintf("ws_stall: no frames for %s", s.cfg.MaxWSStall)
			StallExitsTotal.Inc()
			s.logger.Warn("shadow-stall-detected",
				zap.Duration("max-ws-stall", s.cfg.MaxWSStall),
				zap.Int64("events-received", eng.EventsProcessed()))
			break loop

		case frame, ok := <-src.Frames():
			if !ok {
				exitReason = "source_closed"
				break loop
			}
			if stall != nil {
				if !stall.Stop() {
					select {
					case <-stall.C:
					default:
					}
				}
				stall.Reset(s.cfg.MaxWSStall)
			}

			if t != nil {
				if err := t.writeFrame(frame.Data, frame.TsRecv); err != nil {
					return nil, err
				}
			}

			events, warns := norm.Normalize(frame.Data, frame.TsRecv)
			for _, w := range warns {
				normWarnings = append(normWarnings, w)
				s.logger.Warn("shadow-frame-warning", zap.String("detail", w))
			}

			for i := range events {
				ev := &events[i]
				if t != nil {
					if err := t.writeEvent(ev); err != nil {
						return nil, err
					}
				}
				if err := eng.ProcessEvent(ev); err != nil {
					return nil, err
				}
				if s.cfg.Mirror != nil {
					for _, assetID := range ev.AssetIDs() {
						if bk, ok := eng.Book(assetID); ok {
							s.cfg.Mirror.Publish(bk, mirrorDepth)
						}
					}
				}
			}
			FramesConsumedTotal.Inc()
		}
	}

	eng.Finish()
	s.logger.Info("shadow-feed-ended",
		zap.String("exit-reason", exitReason),
		zap.Int64("events-received", eng.EventsProcessed()))

	ledger := portfolio.New(&portfolio.Config{
		StartingCash:  s.cfg.StartingCash,
		FeeRateBps:    s.cfg.FeeRateBps,
		MarkMethod:    s.cfg.MarkMethod,
		PricingSource: portfolio.PricingSourceLive,
		Logger:        s.logger,
	})
	rows := ledger.Compute(broker.OrderEvents(), eng.Timeline(), eng.Bounds())
	curve := portfolio.EquityCurve(rows)

	finalBBO := eng.PrimaryBBO()
	summary := ledger.Summary(runID, finalBBO.BestBid, finalBBO.BestAsk)

	var opps []strategy.Opportunity
	if p, ok := strat.(strategy.OpportunityProvider); ok {
		opps = p.Opportunities()
	}

	stats := src.Stats()
	wsWarnings := src.Warnings()

	warnings := append(append(append([]string{}, wsWarnings...), normWarnings...), eng.Warnings()...)
	quality, inline, total := runner.QualityFor(warnings)

	cfgJSON := s.cfg.StrategyConfig
	if len(cfgJSON) == 0 {
		cfgJSON = json.RawMessage("{}")
	}
	orders := broker.Orders()
	manifest := &runner.RunManifest{
		RunID:          runID,
		Mode:           runner.ModeShadow,
		StartedAt:      startedAt.Format(time.RFC3339),
		FinishedAt:     time.Now().UTC().Format(time.RFC3339),
		RecordDir:      s.cfg.RecordDir,
		PrimaryAsset:   primary,
		AssetIDs:       s.cfg.AssetIDs,
		Strategy:       s.cfg.StrategyName,
		StrategyConfig: cfgJSON,
		StartingCash:   s.cfg.StartingCash,
		FeeRateBps:     s.cfg.FeeRateBps,
		MarkMethod:     summary.MarkMethod,
		PricingSource:  summary.PricingSource,
		Latency:        s.cfg.Latency,
		StrictBooks:    s.cfg.StrictBooks,
		Counts: runner.RunCounts{
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
		ExitReason:    exitReason,
		RunMetrics: &runner.RunMetrics{
			WsReconnects:         stats.Reconnects,
			WsTimeouts:           stats.Timeouts,
			EventsReceived:       eng.EventsProcessed(),
			BatchedPriceChanges:  eng.BatchedPriceChanges(),
			PerAssetUpdateCounts: eng.PerAssetUpdates(),
		},
	}
	if rc, ok := strat.(strategy.RejectionCounter); ok {
		manifest.RejectionCounts = rc.RejectionCounts()
	}
	if as, ok := strat.(strategy.ArbSummarizer); ok {
		manifest.ModeledArbSummary = as.ModeledArbSummary()
	}

	metaWarnings := append(append([]string{}, wsWarnings...), normWarnings...)
	meta := &runner.RunMeta{
		RunID:           runID,
		Mode:            runner.ModeShadow,
		EventsProcessed: eng.EventsProcessed(),
		AssetIDs:        s.cfg.AssetIDs,
		Warnings:        metaWarnings,
		ExitReason:      exitReason,
	}

	if err := sinks.Close(); err != nil {
		return nil, fmt.Errorf("close streamed artifacts: %w", err)
	}
	if t != nil {
		if err := t.writeMeta(s.cfg, startedAt, stats.Reconnects, norm.Count(), metaWarnings); err != nil {
			return nil, err
		}
		if err := t.close(); err != nil {
			return nil, fmt.Errorf("close tape tee: %w", err)
		}
	}
	if err := runner.WriteFinalArtifacts(s.cfg.OutDir, orders, rows, curve, opps, &summary, manifest, meta); err != nil {
		return nil, err
	}

	if s.cfg.Storage != nil {
		// The run context may already be cancelled on the interrupted
		// exit path; persistence gets its own deadline.
		storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.cfg.Storage.SaveRunSummary(storeCtx, runner.StorageRecord(manifest, &summary)); err != nil {
			s.logger.Warn("run-summary-store-failed",
				zap.String("run-id", runID),
				zap.Error(err))
		}
		cancel()
	}

	runner.RunsTotal.WithLabelValues(runner.ModeShadow, quality).Inc()
	s.logger.Info("shadow-complete",
		zap.String("run-id", runID),
		zap.String("out-dir", s.cfg.OutDir),
		zap.String("exit-reason", exitReason),
		zap.Int64("events", eng.EventsProcessed()),
		zap.Int("fills", len(broker.Fills())),
		zap.String("run-quality", quality),
		zap.Duration("elapsed", time.Since(start)))

	return &runner.Result{
		RunID:    runID,
		OutDir:   s.cfg.OutDir,
		Summary:  summary,
		Quality:  quality,
		Events:   eng.EventsProcessed(),
		Fills:    len(broker.Fills()),
		Warnings: total,
	}, nil
}

// tee mirrors the live session into a loadable tape directory as it
// happens, raw frames and normalized events both.
type tee struct {
	dir      string
	raw      *jsonl.Writer
	events   *jsonl.Writer
	frameSeq int64
	closed   bool
}

func (s *Shadow) openTee() (*tee, error) {
	if s.cfg.RecordDir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(s.cfg.RecordDir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	raw, err := jsonl.NewWriter(filepath.Join(s.cfg.RecordDir, tape.RawFileName))
	if err != nil {
		return nil, err
	}
	events, err := jsonl.NewWriter(filepath.Join(s.cfg.RecordDir, tape.EventsFileName))
	if err != nil {
		raw.Close()
		return nil, err
	}
	return &tee{dir: s.cfg.RecordDir, raw: raw, events: events}, nil
}

func (t *tee) writeFrame(data []byte, tsRecv float64) error {
	frame := tape.RawFrame{FrameSeq: t.frameSeq, TsRecv: tsRecv, Raw: string(data)}
	if err := t.raw.Write(&frame); err != nil {
		return fmt.Errorf("tee raw frame %d: %w", t.frameSeq, err)
	}
	t.frameSeq++
	return nil
}

func (t *tee) writeEvent(ev interface{}) error {
	if err := t.events.Write(ev); err != nil {
		return fmt.Errorf("tee event: %w", err)
	}
	return nil
}

func (t *tee) writeMeta(cfg Config, startedAt time.Time, reconnects, eventCount int64, warnings []string) error {
	if warnings == nil {
		warnings = []string{}
	}

	meta := tape.Meta{
		WSURL:              cfg.WSURL,
		AssetIDs:           cfg.AssetIDs,
		Source:             "shadow",
		StartedAt:          startedAt.Format(time.RFC3339),
		EndedAt:            time.Now().UTC().Format(time.RFC3339),
		RecvTimeoutSeconds: cfg.RecvTimeout.Seconds(),
		ReconnectCount:     reconnects,
		FrameCount:         t.frameSeq,
		EventCount:         eventCount,
		Warnings:           warnings,
	}
	return jsonl.WritePretty(filepath.Join(t.dir, tape.MetaFileName), &meta)
}

func (t *tee) close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	if err := t.raw.Close(); err != nil {
		firstErr = err
	}
	if err := t.events.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

package runner

import (
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/mselser95/polymarket-sim/internal/portfolio"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/storage"
)

// Run quality reported in the manifest.
const (
	QualityOK       = "ok"
	QualityWarnings = "warnings"
)

// Run modes reported in the manifest.
const (
	ModeReplay = "replay"
	ModeShadow = "shadow"
)

// maxInlineWarnings caps how many warnings the manifest carries inline;
// the full count is always reported in warnings_total.
const maxInlineWarnings = 50

// RunCounts are the headline totals of a run.
type RunCounts struct {
	Events        int64 `json:"events"`
	TimelineRows  int   `json:"timeline_rows"`
	Decisions     int   `json:"decisions"`
	Orders        int   `json:"orders"`
	Fills         int   `json:"fills"`
	Opportunities int   `json:"opportunities"`
}

// RunMetrics are live-feed health counters; only shadow runs report
// them.
type RunMetrics struct {
	WsReconnects         int64            `json:"ws_reconnects"`
	WsTimeouts           int64            `json:"ws_timeouts"`
	EventsReceived       int64            `json:"events_received"`
	BatchedPriceChanges  int64            `json:"batched_price_changes"`
	PerAssetUpdateCounts map[string]int64 `json:"per_asset_update_counts"`
}

// RunManifest is run_manifest.json: the full record of what was run,
// with what configuration, and how it went.
type RunManifest struct {
	RunID          string           `json:"run_id"`
	Mode           string           `json:"mode"`
	StartedAt      string           `json:"started_at"`
	FinishedAt     string           `json:"finished_at"`
	TapeDir        string           `json:"tape_dir,omitempty"`
	RecordDir      string           `json:"record_dir,omitempty"`
	PrimaryAsset   string           `json:"primary_asset"`
	AssetIDs       []string         `json:"asset_ids"`
	Strategy       string           `json:"strategy"`
	StrategyConfig json.RawMessage  `json:"strategy_config"`
	StartingCash   decimal.Decimal  `json:"starting_cash"`
	FeeRateBps     int              `json:"fee_rate_bps"`
	MarkMethod     string           `json:"mark_method"`
	PricingSource  string           `json:"pricing_source"`
	Latency        sim.LatencyModel `json:"latency"`
	StrictBooks    bool             `json:"strict_books"`

	Counts            RunCounts      `json:"counts"`
	RejectionCounts   map[string]int `json:"rejection_counts,omitempty"`
	ModeledArbSummary map[string]any `json:"modeled_arb_summary,omitempty"`

	RunQuality    string   `json:"run_quality"`
	Warnings      []string `json:"warnings"`
	WarningsTotal int      `json:"warnings_total"`

	ExitReason string      `json:"exit_reason,omitempty"`
	RunMetrics *RunMetrics `json:"run_metrics,omitempty"`
}

// RunMeta is meta.json: where the events came from and what the reader
// had to say about them. Replay fills warnings with tape loader
// warnings, shadow with feed normalizer warnings.
type RunMeta struct {
	RunID           string   `json:"run_id"`
	Mode            string   `json:"mode"`
	TapeDir         string   `json:"tape_dir,omitempty"`
	EventsLoaded    int      `json:"events_loaded,omitempty"`
	EventsProcessed int64    `json:"events_processed"`
	AssetIDs        []string `json:"asset_ids"`
	Warnings        []string `json:"warnings"`
	ExitReason      string   `json:"exit_reason,omitempty"`
}

// QualityFor folds a warning list into the manifest quality fields:
// quality label, inlined head, total.
func QualityFor(warnings []string) (string, []string, int) {
	if len(warnings) == 0 {
		return QualityOK, []string{}, 0
	}
	inline := warnings
	if len(inline) > maxInlineWarnings {
		inline = inline[:maxInlineWarnings]
	}
	return QualityWarnings, inline, len(warnings)
}

// StorageRecord flattens a manifest and summary into the row backends
// persist.
func StorageRecord(m *RunManifest, s *portfolio.Summary) *storage.RunRecord {
	return &storage.RunRecord{
		RunID:         m.RunID,
		Mode:          m.Mode,
		Strategy:      m.Strategy,
		PrimaryAsset:  m.PrimaryAsset,
		TapeDir:       m.TapeDir,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
		StartingCash:  s.StartingCash,
		FinalEquity:   s.FinalEquity,
		RealizedPnL:   s.RealizedPnL,
		UnrealizedPnL: s.UnrealizedPnL,
		TotalFees:     s.TotalFees,
		NetProfit:     s.NetProfit,
		FeeRateBps:    m.FeeRateBps,
		MarkMethod:    m.MarkMethod,
		PricingSource: m.PricingSource,
		Events:        m.Counts.Events,
		Orders:        m.Counts.Orders,
		Fills:         m.Counts.Fills,
		RunQuality:    m.RunQuality,
		WarningsTotal: m.WarningsTotal,
		ExitReason:    m.ExitReason,
	}
}

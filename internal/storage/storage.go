package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// RunRecord is the flattened end-of-run row a backend persists, one per
// completed replay or shadow run. Timestamps stay RFC3339 strings
// exactly as the run manifest carries them.
type RunRecord struct {
	RunID         string
	Mode          string
	Strategy      string
	PrimaryAsset  string
	TapeDir       string
	StartedAt     string
	FinishedAt    string
	StartingCash  decimal.Decimal
	FinalEquity   decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TotalFees     decimal.Decimal
	NetProfit     decimal.Decimal
	FeeRateBps    int
	MarkMethod    string
	PricingSource string
	Events        int64
	Orders        int
	Fills         int
	RunQuality    string
	WarningsTotal int
	ExitReason    string
}

// Storage is the interface for persisting completed run summaries.
type Storage interface {
	// SaveRunSummary persists one run's summary row.
	SaveRunSummary(ctx context.Context, rec *RunRecord) error

	// Close closes the storage connection.
	Close() error
}

package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// SaveRunSummary pretty-prints a run summary to console.
func (c *ConsoleStorage) SaveRunSummary(ctx context.Context, rec *RunRecord) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("🏁 RUN COMPLETE\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Run:      %s\n", shortID(rec.RunID))
	fmt.Printf("Mode:     %s\n", rec.Mode)
	fmt.Printf("Strategy: %s\n", rec.Strategy)
	if rec.TapeDir != "" {
		fmt.Printf("Tape:     %s\n", rec.TapeDir)
	}
	fmt.Printf("Quality:  %s (%d warnings)\n", rec.RunQuality, rec.WarningsTotal)
	if rec.ExitReason != "" {
		fmt.Printf("Exit:     %s\n", rec.ExitReason)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 ACTIVITY\n")
	fmt.Printf("  Events:  %d\n", rec.Events)
	fmt.Printf("  Orders:  %d\n", rec.Orders)
	fmt.Printf("  Fills:   %d\n", rec.Fills)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("💰 RESULTS\n")
	fmt.Printf("  Starting Cash:   $%s\n", rec.StartingCash.StringFixed(2))
	fmt.Printf("  Final Equity:    $%s\n", rec.FinalEquity.StringFixed(2))
	fmt.Printf("  Realized PnL:    $%s\n", rec.RealizedPnL.StringFixed(2))
	fmt.Printf("  Unrealized PnL:  $%s\n", rec.UnrealizedPnL.StringFixed(2))
	fmt.Printf("  Fees (%d bps):    $%s\n", rec.FeeRateBps, rec.TotalFees.StringFixed(2))
	fmt.Printf("  Net Profit:      $%s\n", rec.NetProfit.StringFixed(2))
	if rec.NetProfit.Sign() > 0 {
		fmt.Printf("  ✅ PROFITABLE after fees!\n")
	} else {
		fmt.Printf("  ❌ NOT profitable after fees\n")
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

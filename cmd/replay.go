package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/runner"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/storage"
	"github.com/mselser95/polymarket-sim/internal/strategy"
	"github.com/mselser95/polymarket-sim/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a tape through a strategy",
	Long: `Replays a recorded tape through a strategy with modeled fills, fees
and latency, and writes the full artifact set (manifest, ledger,
orders, fills, equity curve, best bid/ask timeline, opportunities)
into --out. The same tape and strategy config always produce the same
artifacts.

Cash, fees, latency and marking come from the environment
(STARTING_CASH, FEE_RATE_BPS, SUBMIT_TICKS, CANCEL_TICKS, MARK_METHOD,
STRICT_BOOK).

Example:
  polymarket-sim replay --tape tapes/election --out runs/first --strategy take_best`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringP("tape", "t", "", "Tape directory to replay (required)")
	replayCmd.Flags().StringP("out", "o", "", "Artifact output directory (required)")
	replayCmd.Flags().StringP("strategy", "s", strategy.NameNoop, "Strategy name (see 'strategies')")
	replayCmd.Flags().String("strategy-config", "", "Strategy config: inline JSON or a file path")
	replayCmd.Flags().String("primary-asset", "", "Asset whose book drives the timeline (default: first on tape)")
	replayCmd.Flags().String("run-id", "", "Run id (default: random uuid)")
	_ = replayCmd.MarkFlagRequired("tape")
	_ = replayCmd.MarkFlagRequired("out")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tapeDir, _ := cmd.Flags().GetString("tape")
	outDir, _ := cmd.Flags().GetString("out")
	strategyName, _ := cmd.Flags().GetString("strategy")
	strategyConfigArg, _ := cmd.Flags().GetString("strategy-config")
	primaryAsset, _ := cmd.Flags().GetString("primary-asset")
	runID, _ := cmd.Flags().GetString("run-id")

	strategyConfig, err := strategy.LoadConfig(strategyConfigArg)
	if err != nil {
		return fmt.Errorf("load strategy config: %w", err)
	}

	runStorage, err := newRunStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}
	defer func() {
		_ = runStorage.Close()
	}()

	replay, err := runner.New(&runner.Config{
		TapeDir:        tapeDir,
		OutDir:         outDir,
		StrategyName:   strategyName,
		StrategyConfig: strategyConfig,
		PrimaryAsset:   primaryAsset,
		StartingCash:   cfg.StartingCash,
		FeeRateBps:     cfg.FeeRateBps,
		MarkMethod:     cfg.MarkMethod,
		Latency:        sim.LatencyModel{SubmitTicks: cfg.SubmitTicks, CancelTicks: cfg.CancelTicks},
		StrictBooks:    cfg.StrictBook,
		RunID:          runID,
		Logger:         logger,
		Storage:        runStorage,
	})
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nAborting replay...")
		cancel()
	}()

	res, err := replay.Run(ctx)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	printRunSummary(os.Stdout, res)
	return nil
}

// newRunStorage builds the run summary sink the environment selects,
// console unless STORAGE_MODE is postgres.
func newRunStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		return storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	}
	return storage.NewConsoleStorage(logger), nil
}

// printRunSummary renders a finished run for the terminal. Shared by
// replay and shadow.
func printRunSummary(out io.Writer, res *runner.Result) {
	fmt.Fprintf(out, "\nRun %s complete\n\n", res.RunID)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "quality\t%s\n", res.Quality)
	fmt.Fprintf(w, "events\t%d\n", res.Events)
	fmt.Fprintf(w, "fills\t%d\n", res.Fills)
	fmt.Fprintf(w, "warnings\t%d\n", res.Warnings)
	fmt.Fprintf(w, "starting cash\t%s\n", res.Summary.StartingCash)
	fmt.Fprintf(w, "final equity\t%s\n", res.Summary.FinalEquity)
	fmt.Fprintf(w, "realized pnl\t%s\n", res.Summary.RealizedPnL)
	fmt.Fprintf(w, "unrealized pnl\t%s\n", res.Summary.UnrealizedPnL)
	fmt.Fprintf(w, "fees\t%s\n", res.Summary.TotalFees)
	fmt.Fprintf(w, "net profit\t%s\n", res.Summary.NetProfit)
	_ = w.Flush()

	fmt.Fprintf(out, "\nArtifacts in %s\n", res.OutDir)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-sim/internal/app"
	"github.com/mselser95/polymarket-sim/internal/strategy"
	"github.com/mselser95/polymarket-sim/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var shadowCmd = &cobra.Command{
	Use:   "shadow",
	Short: "Run a strategy against the live feed without trading",
	Long: `Runs the replay engine against the live WebSocket feed: same books,
same fill model, same artifacts, no orders sent anywhere. While the
run is up an HTTP server exposes /metrics, /health, /ready and the
live books under /books.

The run ends after --duration, on SIGINT/SIGTERM, or when the feed
stalls past MAX_WS_STALL. Pass --record-dir to tee the live session
into a tape for later replays.

Example:
  polymarket-sim shadow --out runs/live --assets <yes-id>,<no-id> --strategy arb_watch --duration 1h`,
	Args: cobra.NoArgs,
	RunE: runShadow,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(shadowCmd)
	shadowCmd.Flags().StringP("out", "o", "", "Artifact output directory (required)")
	shadowCmd.Flags().StringSliceP("assets", "a", nil, "Asset ids to track (required)")
	shadowCmd.Flags().StringP("strategy", "s", strategy.NameNoop, "Strategy name (see 'strategies')")
	shadowCmd.Flags().String("strategy-config", "", "Strategy config: inline JSON or a file path")
	shadowCmd.Flags().String("primary-asset", "", "Asset whose book drives the timeline (default: first asset)")
	shadowCmd.Flags().String("record-dir", "", "Also record the live feed into this tape directory")
	shadowCmd.Flags().Duration("duration", 0, "Stop after this long (0 = run until signal)")
	shadowCmd.Flags().String("run-id", "", "Run id (default: random uuid)")
	_ = shadowCmd.MarkFlagRequired("out")
	_ = shadowCmd.MarkFlagRequired("assets")
}

func runShadow(cmd *cobra.Command, args []string) error {
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

	outDir, _ := cmd.Flags().GetString("out")
	assets, _ := cmd.Flags().GetStringSlice("assets")
	strategyName, _ := cmd.Flags().GetString("strategy")
	strategyConfigArg, _ := cmd.Flags().GetString("strategy-config")
	primaryAsset, _ := cmd.Flags().GetString("primary-asset")
	recordDir, _ := cmd.Flags().GetString("record-dir")
	duration, _ := cmd.Flags().GetDuration("duration")
	runID, _ := cmd.Flags().GetString("run-id")

	strategyConfig, err := strategy.LoadConfig(strategyConfigArg)
	if err != nil {
		return fmt.Errorf("load strategy config: %w", err)
	}

	opts := &app.Options{
		OutDir:         outDir,
		AssetIDs:       assets,
		PrimaryAsset:   primaryAsset,
		StrategyName:   strategyName,
		StrategyConfig: strategyConfig,
		RecordDir:      recordDir,
		Duration:       duration,
		RunID:          runID,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	res, err := application.Run()
	if err != nil {
		return fmt.Errorf("run shadow: %w", err)
	}

	printRunSummary(os.Stdout, res)
	return nil
}

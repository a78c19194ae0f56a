package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-sim/internal/tape"
	"github.com/mselser95/polymarket-sim/pkg/config"
	"github.com/mselser95/polymarket-sim/pkg/websocket"
)

//nolint:gochecknoglobals // Cobra boilerplate
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the live orderbook feed into a tape",
	Long: `Connects to the Polymarket market data WebSocket, subscribes to the
given asset ids and records the feed into a tape directory:

  raw_ws.jsonl   verbatim frames with receive timestamps
  events.jsonl   normalized events, one per line
  meta.json      recording metadata and warnings

Recording stops after --duration, or on SIGINT/SIGTERM. A partial tape
is still loadable.

Example:
  polymarket-sim record --dir tapes/election --assets <yes-id>,<no-id> --duration 15m`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringP("dir", "d", "", "Tape output directory (required)")
	recordCmd.Flags().StringSliceP("assets", "a", nil, "Asset ids to record (required)")
	recordCmd.Flags().Duration("duration", 0, "Stop after this long (0 = record until signal)")
	_ = recordCmd.MarkFlagRequired("dir")
	_ = recordCmd.MarkFlagRequired("assets")
}

func runRecord(cmd *cobra.Command, args []string) error {
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

	dir, _ := cmd.Flags().GetString("dir")
	assets, _ := cmd.Flags().GetStringSlice("assets")
	duration, _ := cmd.Flags().GetDuration("duration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping recording...")
		cancel()
	}()

	wsManager := websocket.New(websocket.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		RecvTimeout:           cfg.WSRecvTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		FrameBufferSize:       cfg.WSFrameBufferSize,
		Logger:                logger,
	})

	err = wsManager.Start()
	if err != nil {
		return fmt.Errorf("start websocket: %w", err)
	}
	defer func() {
		_ = wsManager.Close()
	}()

	err = wsManager.Subscribe(ctx, assets)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	fmt.Printf("Recording %d assets to %s", len(assets), dir)
	if duration > 0 {
		fmt.Printf(" for %s", duration)
	}
	fmt.Println()

	recorder := tape.NewRecorder(&tape.Config{
		Dir:         dir,
		WSURL:       cfg.PolymarketWSURL,
		AssetIDs:    assets,
		Duration:    duration,
		RecvTimeout: cfg.WSRecvTimeout,
		Logger:      logger,
	})

	err = recorder.Run(ctx, wsManager)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	stats := wsManager.Stats()
	fmt.Printf("\nRecording complete: %d frames, %d reconnects, %d timeouts\n",
		stats.Frames, stats.Reconnects, stats.Timeouts)
	fmt.Printf("Tape written to %s\n", dir)

	return nil
}

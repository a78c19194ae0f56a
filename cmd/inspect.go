package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/tape"
	"github.com/mselser95/polymarket-sim/pkg/config"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var inspectCmd = &cobra.Command{
	Use:   "inspect <tape-dir>",
	Short: "Summarize a recorded tape",
	Long: `Loads a tape and prints what is on it: recording metadata, the seq
range, the feed duration and per-asset event counts. Lines the loader
had to skip are listed as warnings.

Example:
  polymarket-sim inspect tapes/election`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	return inspectTape(args[0], os.Stdout, logger)
}

func inspectTape(dir string, out io.Writer, logger *zap.Logger) error {
	tp, err := tape.Load(dir, logger)
	if err != nil {
		return fmt.Errorf("load tape: %w", err)
	}

	first, last := tp.First(), tp.Last()
	fmt.Fprintf(out, "Tape %s\n", dir)
	fmt.Fprintf(out, "%d events, seq %d..%d, %.1fs of feed\n",
		len(tp.Events), first.Seq, last.Seq, last.TsRecv-first.TsRecv)

	if m := tp.Meta; m != nil {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "source\t%s\n", m.Source)
		fmt.Fprintf(w, "ws url\t%s\n", m.WSURL)
		fmt.Fprintf(w, "recorded\t%s .. %s\n", m.StartedAt, m.EndedAt)
		fmt.Fprintf(w, "frames\t%d\n", m.FrameCount)
		fmt.Fprintf(w, "reconnects\t%d\n", m.ReconnectCount)
		_ = w.Flush()
	}

	type assetCounts struct {
		total, books, deltas, trades, ticks int
	}
	// Batched price changes touch several assets; count one touch per
	// asset, so the per-asset totals can sum past the event count.
	counts := map[string]*assetCounts{}
	for i := range tp.Events {
		ev := &tp.Events[i]
		for _, assetID := range ev.AssetIDs() {
			c := counts[assetID]
			if c == nil {
				c = &assetCounts{}
				counts[assetID] = c
			}
			c.total++
			switch ev.EventType {
			case types.EventTypeBook:
				c.books++
			case types.EventTypePriceChange:
				c.deltas++
			case types.EventTypeLastTradePrice:
				c.trades++
			case types.EventTypeTickSizeChange:
				c.ticks++
			}
		}
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tEVENTS\tBOOKS\tDELTAS\tTRADES\tTICK CHANGES")
	for _, assetID := range tp.AssetIDs() {
		c := counts[assetID]
		if c == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
			assetID, c.total, c.books, c.deltas, c.trades, c.ticks)
	}
	_ = w.Flush()

	if m := tp.Meta; m != nil && len(m.Warnings) > 0 {
		fmt.Fprintf(out, "\nRecorder warnings (%d)\n", len(m.Warnings))
		for _, warning := range m.Warnings {
			fmt.Fprintf(out, "  %s\n", warning)
		}
	}
	if len(tp.Warnings) > 0 {
		fmt.Fprintf(out, "\nLoader warnings (%d)\n", len(tp.Warnings))
		for _, warning := range tp.Warnings {
			fmt.Fprintf(out, "  %s\n", warning)
		}
	}

	return nil
}

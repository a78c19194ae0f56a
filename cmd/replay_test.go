package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/polymarket-sim/internal/portfolio"
	"github.com/mselser95/polymarket-sim/internal/runner"
	"github.com/mselser95/polymarket-sim/internal/strategy"
	"github.com/mselser95/polymarket-sim/internal/testutil"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

func TestReplayCommand_EndToEnd(t *testing.T) {
	t.Setenv("STARTING_CASH", "1000")
	t.Setenv("FEE_RATE_BPS", "200")
	t.Setenv("SUBMIT_TICKS", "1")
	t.Setenv("MARK_METHOD", "bid")
	t.Setenv("STORAGE_MODE", "console")
	t.Setenv("LOG_LEVEL", "error")

	tapeDir := testutil.WriteTape(t, []types.Event{
		testutil.BookEvent(0, yesToken, [][2]string{{"0.44", "100"}}, [][2]string{{"0.46", "100"}}),
		testutil.BookEvent(1, yesToken, [][2]string{{"0.44", "100"}}, [][2]string{{"0.46", "100"}}),
		testutil.BookEvent(2, yesToken, [][2]string{{"0.44", "100"}}, [][2]string{{"0.46", "100"}}),
	})
	outDir := filepath.Join(t.TempDir(), "run")

	rootCmd.SetArgs([]string{
		"replay",
		"--tape", tapeDir,
		"--out", outDir,
		"--strategy", strategy.NameTakeBest,
		"--run-id", "cmd-replay-1",
	})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(filepath.Join(outDir, runner.ManifestFile))
	require.NoError(t, err)

	var manifest runner.RunManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, "cmd-replay-1", manifest.RunID)
	assert.Equal(t, runner.ModeReplay, manifest.Mode)
	assert.Equal(t, strategy.NameTakeBest, manifest.Strategy)
	assert.Equal(t, int64(3), manifest.Counts.Events)
	assert.Equal(t, 1, manifest.Counts.Fills)

	for _, name := range []string{
		runner.LedgerFile,
		runner.OrdersFile,
		runner.FillsFile,
		runner.EquityCurveFile,
		runner.BestBidAskFile,
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
}

func TestPrintRunSummary(t *testing.T) {
	res := &runner.Result{
		RunID:   "run-42",
		OutDir:  "/tmp/runs/run-42",
		Quality: runner.QualityOK,
		Events:  120,
		Fills:   2,
		Summary: portfolio.Summary{
			StartingCash: decimal.NewFromInt(1000),
			FinalEquity:  decimal.RequireFromString("1003.5"),
			RealizedPnL:  decimal.RequireFromString("2.1"),
			NetProfit:    decimal.RequireFromString("3.5"),
		},
	}

	var buf bytes.Buffer
	printRunSummary(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Run run-42 complete")
	assert.Contains(t, out, "1003.5")
	assert.Contains(t, out, "Artifacts in /tmp/runs/run-42")
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-sim/internal/strategy"
)

//nolint:gochecknoglobals // Cobra boilerplate
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List registered strategies",
	Long: `Lists every strategy name the replay, shadow and session commands
accept for --strategy. Strategies compiled into the binary register
themselves at startup, so custom builds show their extras here too.`,
	Args: cobra.NoArgs,
	RunE: runStrategies,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func runStrategies(cmd *cobra.Command, args []string) error {
	listStrategies(os.Stdout)
	return nil
}

func listStrategies(out io.Writer) {
	names := strategy.Names()
	fmt.Fprintf(out, "Registered strategies (%d)\n", len(names))
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", name)
	}
}

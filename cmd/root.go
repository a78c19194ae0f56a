package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-sim/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-sim",
	Short: "Polymarket CLOB simulator",
	Long: `Deterministic simulator for Polymarket CLOB strategies.

Record live orderbook feeds into replayable tapes, replay tapes through
strategies with modeled fills, fees and latency, shadow the live feed
with the same engine, or step through a tape interactively. Every run
writes a self-describing artifact directory, so results can be compared
run over run.

Simulation settings (cash, fees, latency ticks, marking) come from the
environment; a .env file in the working directory is loaded first.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Flags can be added here if needed
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (*config.Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return config.LoadFromEnv()
}

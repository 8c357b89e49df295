// Package commands implements the krxflow CLI: a one-shot daily run and
// a long-lived cron schedule around the same pipeline.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"krxflow/internal/config"
	"krxflow/internal/infrastructure"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "krxflow",
	Short: "KRX daily net-flow crawler and report builder",
	Long: `krxflow downloads the daily per-investor net purchase tables from the
Korea Exchange, standardizes them, and maintains the cumulative ledgers,
the ranking snapshot workbook and the watchlist exports.

Examples:
  krxflow run              # process today
  krxflow run 20251014     # reprocess a specific date
  krxflow schedule         # run on the configured cron schedule`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	// A .env next to the binary is the common deployment shape;
	// missing is fine.
	_ = godotenv.Load()
	defer infrastructure.CloseLogFile()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return exitCode
}

// exitCode carries the pipeline outcome out of RunE, which can only
// return an error.
var exitCode int

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default krxflow.yaml)")
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}

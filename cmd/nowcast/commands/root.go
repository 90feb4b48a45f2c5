package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nowcast",
	Short: "Daily market-signal nowcasting pipeline",
	Long: `Nowcast fuses social/news attention with daily price data into a
feature table, trains direction classifiers on a temporal split, and
reports holdout accuracy and decile spreads.

Usage:
  go run ./cmd/nowcast [command]

Examples:
  go run ./cmd/nowcast api
  go run ./cmd/nowcast collect all
  go run ./cmd/nowcast run --from 2024-01-01 --to 2025-01-06
  go run ./cmd/nowcast scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

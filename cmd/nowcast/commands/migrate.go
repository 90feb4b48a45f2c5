package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejames/nowcast/internal/contracts"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Connects to postgres, applies the schema migrations, and reports
the state of the stored data.

Example:
  go run ./cmd/nowcast migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	// initDeps runs the migrations as part of wiring
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	PrintSuccess("Schema up to date")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	latest, err := d.priceRepo.LatestDate(ctx)
	if err != nil {
		return fmt.Errorf("latest price date: %w", err)
	}
	if latest.IsZero() {
		fmt.Println("No price data stored yet")
	} else {
		fmt.Printf("Newest stored bar: %s\n", latest.Format(contracts.DateFormat))
	}

	if rows, err := d.metricsRepo.Latest(ctx); err == nil && len(rows) > 0 {
		fmt.Printf("Last run: %s (%d models)\n", rows[0].RunAt.Format(time.RFC3339), len(rows))
	} else {
		fmt.Println("No runs recorded yet")
	}

	return nil
}

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejames/nowcast/internal/contracts"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored data and latest run metrics",
	Long: `Reports the state of the stored data and the metrics of the
most recent pipeline run.

Example:
  go run ./cmd/nowcast status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Println("Stored data")
	PrintSeparator()

	latest, err := d.priceRepo.LatestDate(ctx)
	if err != nil {
		return fmt.Errorf("latest price date: %w", err)
	}
	if latest.IsZero() {
		fmt.Println("  prices    : none")
	} else {
		fmt.Printf("  prices    : up to %s\n", latest.Format(contracts.DateFormat))
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	attention, err := d.attentionRepo.GetByDateRange(ctx, weekAgo, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("attention range: %w", err)
	}
	fmt.Printf("  attention : %d records in the last 7 days\n", len(attention))

	rows, err := d.metricsRepo.Latest(ctx)
	if err != nil {
		return fmt.Errorf("latest metrics: %w", err)
	}

	fmt.Println()
	if len(rows) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	fmt.Printf("Latest run (%s)\n", rows[0].RunAt.Format(time.RFC3339))
	PrintSeparator()

	widths := []int{10, 10, 14, 14}
	PrintTableHeader([]string{"MODEL", "ACCURACY", "SPREAD/DAY", "SPREAD/YEAR"}, widths)
	for _, row := range rows {
		PrintTableRow([]string{
			row.ModelName,
			formatMetric(row.HoldoutAccuracy, "%.4f"),
			formatMetric(row.DecileSpreadDaily, "%.4f"),
			formatMetric(row.DecileSpreadAnnualized, "%.4f"),
		}, widths)
	}
	fmt.Printf("\nTrain rows: %d | holdout rows: %d\n", rows[0].NTrain, rows[0].NHoldout)

	return nil
}

package commands

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejames/nowcast/internal/contracts"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once over stored data",
	Long: `Builds the feature table from stored attention and price data,
trains the configured models on a temporal split, and prints the
holdout metrics. Metrics are persisted on success.

Example:
  go run ./cmd/nowcast run
  go run ./cmd/nowcast run --from 2024-01-01 --to 2025-01-06`,
	RunE: runPipeline,
}

var (
	runFrom string
	runTo   string
)

// defaultRunWindowDays matches the scheduled daily run
const defaultRunWindowDays = 365

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFrom, "from", "", "feature window start (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runTo, "to", "", "feature window end (YYYY-MM-DD)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -defaultRunWindowDays)
	if runFrom != "" {
		if from, err = time.Parse(contracts.DateFormat, runFrom); err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
	}
	if runTo != "" {
		if to, err = time.Parse(contracts.DateFormat, runTo); err != nil {
			return fmt.Errorf("invalid --to date: %w", err)
		}
	}

	fmt.Printf("Window: %s ~ %s\n", from.Format(contracts.DateFormat), to.Format(contracts.DateFormat))
	fmt.Printf("Models: %v | horizon: %dd | holdout: %d days\n\n",
		d.cfg.Nowcast.Models, d.cfg.Nowcast.HorizonDays, d.cfg.Nowcast.HoldoutDays)

	result, err := d.service.RunWindow(context.Background(), from, to)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Printf("Feature rows : %d (train %d, holdout %d)\n", result.Table.Len(), result.NTrain, result.NHoldout)
	fmt.Printf("Dropped      : %d attention, %d price records\n", result.DroppedAttention, result.DroppedPrices)
	fmt.Printf("Duration     : %s\n\n", result.Duration)

	widths := []int{10, 10, 10, 14, 14}
	PrintTableHeader([]string{"MODEL", "ACCURACY", "BASELINE", "SPREAD/DAY", "SPREAD/YEAR"}, widths)
	for _, m := range result.Metrics {
		PrintTableRow([]string{
			m.ModelName,
			formatMetric(m.HoldoutAccuracy, "%.4f"),
			formatMetric(m.BaselineAccuracy, "%.4f"),
			formatMetric(m.DecileSpreadDaily, "%.5f"),
			formatMetric(m.DecileSpreadAnnualized, "%.4f"),
		}, widths)
	}

	fmt.Println()
	PrintSuccess("Run completed, metrics saved")
	return nil
}

// formatMetric renders a metric value, showing undefined ones as "-"
func formatMetric(v float64, format string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

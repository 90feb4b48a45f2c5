package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/ingest/feeds"
	"github.com/ejames/nowcast/internal/ingest/prices"
	"github.com/ejames/nowcast/internal/universe"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect [target]",
	Short: "Collect attention and price data",
	Long: `Runs a one-shot data collection and persists the results.

Targets:
  buzz    - poll the configured feeds for ticker mentions
  prices  - fetch daily bars for the universe
  all     - both

Example:
  go run ./cmd/nowcast collect all
  go run ./cmd/nowcast collect prices --from 2024-01-01 --to 2025-01-06`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

var (
	collectFrom string
	collectTo   string
)

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&collectFrom, "from", "", "start date for prices (YYYY-MM-DD, default: lookback)")
	collectCmd.Flags().StringVar(&collectTo, "to", "", "end date for prices (YYYY-MM-DD, default: today)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	target := args[0]
	if target != "buzz" && target != "prices" && target != "all" {
		return fmt.Errorf("unknown target: %s (valid: buzz, prices, all)", target)
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := context.Background()

	u, err := d.universes.Load(d.cfg.Universe.CSVPath)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	fmt.Printf("Universe: %d tickers (%s)\n", len(u.Tickers), u.Source)

	if target == "buzz" || target == "all" {
		if err := collectBuzz(ctx, d, u); err != nil {
			return err
		}
	}
	if target == "prices" || target == "all" {
		if err := collectPrices(ctx, d, u); err != nil {
			return err
		}
	}
	return nil
}

func collectBuzz(ctx context.Context, d *deps, u *universe.Universe) error {
	fmt.Println()
	PrintSeparator()
	fmt.Printf("Polling %d feeds...\n", len(d.cfg.Feeds.URLs))

	records, results, err := d.feedCollector.CollectAll(ctx, d.cfg.Feeds.URLs, u, time.Now().UTC(), feeds.Config{Workers: d.cfg.Nowcast.Workers})
	if err != nil {
		return fmt.Errorf("collect buzz: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			PrintError(fmt.Sprintf("%s: %v", r.FeedURL, r.Error))
		} else {
			fmt.Printf("  %s: %d entries (%d new)\n", r.FeedURL, r.Entries, r.NewEntries)
		}
	}

	if err := d.attentionRepo.SaveBatch(ctx, records); err != nil {
		return fmt.Errorf("save attention records: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Saved %d attention records", len(records)))
	return nil
}

func collectPrices(ctx context.Context, d *deps, u *universe.Universe) error {
	var err error
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -d.cfg.Prices.LookbackDays)
	if collectFrom != "" {
		if from, err = time.Parse(contracts.DateFormat, collectFrom); err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
	}
	if collectTo != "" {
		if to, err = time.Parse(contracts.DateFormat, collectTo); err != nil {
			return fmt.Errorf("invalid --to date: %w", err)
		}
	}

	fmt.Println()
	PrintSeparator()
	fmt.Printf("Fetching daily bars %s ~ %s for %d tickers...\n",
		from.Format(contracts.DateFormat), to.Format(contracts.DateFormat), len(u.Tickers))

	records, results, err := d.priceFetcher.FetchAll(ctx, u.Tickers, from, to, prices.Config{Workers: d.cfg.Prices.Workers})
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			PrintError(fmt.Sprintf("%s: %v", r.Ticker, r.Error))
		}
	}

	if err := d.priceRepo.SaveBatch(ctx, records); err != nil {
		return fmt.Errorf("save price records: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Saved %d bars (%d/%d tickers ok)", len(records), len(results)-failed, len(results)))
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/ingest/prices"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/logger"
)

// PriceCollector fetches daily bar history for a ticker set
type PriceCollector interface {
	FetchAll(ctx context.Context, tickers []string, from, to time.Time, cfg prices.Config) ([]contracts.PriceRecord, []prices.FetchResult, error)
}

// PriceWriter persists daily bars and reports the newest stored date
type PriceWriter interface {
	SaveBatch(ctx context.Context, recs []contracts.PriceRecord) error
	LatestDate(ctx context.Context) (time.Time, error)
}

// PriceJob fetches daily bars after the US close. Incremental: on a
// warm database it only re-fetches a few days back from the newest
// stored bar, so late vendor corrections get picked up too.
type PriceJob struct {
	fetcher   PriceCollector
	store     PriceWriter
	universes UniverseLoader
	cfg       *config.Config
	logger    *logger.Logger
}

// refetchDays is how far behind the newest stored bar each run reaches
const refetchDays = 5

// NewPriceJob creates the daily bar collection job
func NewPriceJob(fetcher PriceCollector, store PriceWriter, universes UniverseLoader, cfg *config.Config, log *logger.Logger) *PriceJob {
	return &PriceJob{
		fetcher:   fetcher,
		store:     store,
		universes: universes,
		cfg:       cfg,
		logger:    log,
	}
}

// Name returns the job name
func (j *PriceJob) Name() string {
	return "price_collection"
}

// Schedule returns the cron expression
func (j *PriceJob) Schedule() string {
	return j.cfg.Scheduler.PricesCron
}

// Run fetches bars from shortly before the newest stored date (or the
// full configured lookback on an empty database) through today
func (j *PriceJob) Run(ctx context.Context) error {
	u, err := j.universes.Load(j.cfg.Universe.CSVPath)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -j.cfg.Prices.LookbackDays)

	latest, err := j.store.LatestDate(ctx)
	if err != nil {
		return fmt.Errorf("latest stored date: %w", err)
	}
	if !latest.IsZero() {
		if incr := latest.AddDate(0, 0, -refetchDays); incr.After(from) {
			from = incr
		}
	}

	records, results, err := j.fetcher.FetchAll(ctx, u.Tickers, from, to, prices.Config{Workers: j.cfg.Prices.Workers})
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	if err := j.store.SaveBatch(ctx, records); err != nil {
		return fmt.Errorf("save price records: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"records":        len(records),
		"tickers":        len(u.Tickers),
		"tickers_failed": failed,
		"from":           from.Format(contracts.DateFormat),
		"to":             to.Format(contracts.DateFormat),
	}).Info("Price collection completed")

	return nil
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/ingest/feeds"
	"github.com/ejames/nowcast/internal/universe"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/logger"
)

// BuzzCollector polls feeds into attention records
type BuzzCollector interface {
	CollectAll(ctx context.Context, feedURLs []string, u *universe.Universe, asOf time.Time, cfg feeds.Config) ([]contracts.AttentionRecord, []feeds.FetchResult, error)
}

// AttentionWriter persists attention records
type AttentionWriter interface {
	SaveBatch(ctx context.Context, recs []contracts.AttentionRecord) error
}

// UniverseLoader resolves the ticker universe
type UniverseLoader interface {
	Load(path string) (*universe.Universe, error)
}

// BuzzJob polls the configured feeds and persists the resulting
// attention records. Runs frequently so short-lived posts are not
// missed between daily runs.
type BuzzJob struct {
	collector BuzzCollector
	store     AttentionWriter
	universes UniverseLoader
	cfg       *config.Config
	logger    *logger.Logger
}

// NewBuzzJob creates the attention collection job
func NewBuzzJob(collector BuzzCollector, store AttentionWriter, universes UniverseLoader, cfg *config.Config, log *logger.Logger) *BuzzJob {
	return &BuzzJob{
		collector: collector,
		store:     store,
		universes: universes,
		cfg:       cfg,
		logger:    log,
	}
}

// Name returns the job name
func (j *BuzzJob) Name() string {
	return "buzz_collection"
}

// Schedule returns the cron expression
func (j *BuzzJob) Schedule() string {
	return j.cfg.Scheduler.BuzzCron
}

// Run polls every feed once and persists the aggregated records
func (j *BuzzJob) Run(ctx context.Context) error {
	u, err := j.universes.Load(j.cfg.Universe.CSVPath)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	asOf := time.Now().UTC()
	records, results, err := j.collector.CollectAll(ctx, j.cfg.Feeds.URLs, u, asOf, feeds.Config{Workers: j.cfg.Nowcast.Workers})
	if err != nil {
		return fmt.Errorf("collect buzz: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	if err := j.store.SaveBatch(ctx, records); err != nil {
		return fmt.Errorf("save attention records: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"records":      len(records),
		"feeds":        len(results),
		"feeds_failed": failed,
	}).Info("Buzz collection completed")

	return nil
}

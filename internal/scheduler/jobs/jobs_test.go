package jobs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/ingest/feeds"
	"github.com/ejames/nowcast/internal/ingest/prices"
	"github.com/ejames/nowcast/internal/universe"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "error")
}

func testConfig() *config.Config {
	return &config.Config{
		Feeds:  config.FeedsConfig{URLs: []string{"https://example.com/feed"}},
		Prices: config.PricesConfig{LookbackDays: 730, Workers: 2},
		Nowcast: config.NowcastConfig{
			Workers: 2,
		},
		Scheduler: config.SchedulerConfig{
			BuzzCron:   "0 0 * * * *",
			PricesCron: "0 30 21 * * 1-5",
			RunCron:    "0 0 22 * * 1-5",
		},
	}
}

type fakeUniverses struct{}

func (fakeUniverses) Load(path string) (*universe.Universe, error) {
	return &universe.Universe{Tickers: []string{"AAPL", "MSFT"}, Source: "builtin"}, nil
}

type fakeBuzzCollector struct {
	records []contracts.AttentionRecord
	err     error
}

func (f *fakeBuzzCollector) CollectAll(ctx context.Context, feedURLs []string, u *universe.Universe, asOf time.Time, cfg feeds.Config) ([]contracts.AttentionRecord, []feeds.FetchResult, error) {
	return f.records, nil, f.err
}

type fakeAttentionWriter struct {
	saved []contracts.AttentionRecord
}

func (f *fakeAttentionWriter) SaveBatch(ctx context.Context, recs []contracts.AttentionRecord) error {
	f.saved = append(f.saved, recs...)
	return nil
}

type fakePriceCollector struct {
	from, to time.Time
	records  []contracts.PriceRecord
}

func (f *fakePriceCollector) FetchAll(ctx context.Context, tickers []string, from, to time.Time, cfg prices.Config) ([]contracts.PriceRecord, []prices.FetchResult, error) {
	f.from, f.to = from, to
	return f.records, nil, nil
}

type fakePriceWriter struct {
	latest time.Time
	saved  int
}

func (f *fakePriceWriter) SaveBatch(ctx context.Context, recs []contracts.PriceRecord) error {
	f.saved += len(recs)
	return nil
}

func (f *fakePriceWriter) LatestDate(ctx context.Context) (time.Time, error) {
	return f.latest, nil
}

func TestBuzzJobSavesCollectedRecords(t *testing.T) {
	collector := &fakeBuzzCollector{records: []contracts.AttentionRecord{
		{Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), Ticker: "AAPL", MentionCount: 3, MeanSentiment: 0.4, SourceCount: 2},
	}}
	store := &fakeAttentionWriter{}

	job := NewBuzzJob(collector, store, fakeUniverses{}, testConfig(), testLogger())
	require.Equal(t, "buzz_collection", job.Name())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, store.saved, 1)
	assert.Equal(t, "AAPL", store.saved[0].Ticker)
}

func TestBuzzJobSurfacesCollectorError(t *testing.T) {
	collector := &fakeBuzzCollector{err: errors.New("feed down")}
	job := NewBuzzJob(collector, &fakeAttentionWriter{}, fakeUniverses{}, testConfig(), testLogger())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collect buzz")
}

func TestPriceJobColdStartUsesFullLookback(t *testing.T) {
	fetcher := &fakePriceCollector{}
	store := &fakePriceWriter{} // zero latest date

	job := NewPriceJob(fetcher, store, fakeUniverses{}, testConfig(), testLogger())
	require.NoError(t, job.Run(context.Background()))

	wantFrom := time.Now().UTC().AddDate(0, 0, -730)
	assert.WithinDuration(t, wantFrom, fetcher.from, time.Minute)
}

func TestPriceJobWarmStartIsIncremental(t *testing.T) {
	fetcher := &fakePriceCollector{}
	latest := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	store := &fakePriceWriter{latest: latest}

	job := NewPriceJob(fetcher, store, fakeUniverses{}, testConfig(), testLogger())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, latest.AddDate(0, 0, -refetchDays), fetcher.from,
		"warm start reaches back a few days from the newest stored bar")
}

func TestJobSchedulesComeFromConfig(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, cfg.Scheduler.BuzzCron,
		NewBuzzJob(nil, nil, nil, cfg, testLogger()).Schedule())
	assert.Equal(t, cfg.Scheduler.PricesCron,
		NewPriceJob(nil, nil, nil, cfg, testLogger()).Schedule())
	assert.Equal(t, cfg.Scheduler.RunCron,
		NewNowcastRunJob(nil, nil, nil, cfg, testLogger()).Schedule())
}

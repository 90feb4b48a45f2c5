package feeds

import (
	"context"
	"sync"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/ingest/sentiment"
	"github.com/ejames/nowcast/internal/universe"
	"github.com/ejames/nowcast/pkg/httputil"
	"github.com/ejames/nowcast/pkg/logger"
	"github.com/ejames/nowcast/pkg/redis"
)

// Collector polls the configured feeds and turns their entries into
// daily attention records: mention counts, mean sentiment, and
// distinct-source counts per (date, ticker).
type Collector struct {
	client *httputil.Client
	dedup  *redis.Dedup
	logger *logger.Logger
}

// Config holds collector tuning
type Config struct {
	Workers int
}

// NewCollector creates a feed collector. The dedup store may wrap a
// disabled redis client, in which case every entry counts as unseen.
func NewCollector(client *httputil.Client, dedup *redis.Dedup, log *logger.Logger) *Collector {
	return &Collector{
		client: client,
		dedup:  dedup,
		logger: log.Component("feeds.collector"),
	}
}

// FetchResult reports the outcome of polling one feed
type FetchResult struct {
	FeedURL    string
	Entries    int
	NewEntries int
	Error      error
}

// CollectAll polls every feed through a worker pool and aggregates the
// unseen entries into attention records. A failing feed is reported in
// its FetchResult and the rest of the poll continues.
func (c *Collector) CollectAll(ctx context.Context, feedURLs []string, u *universe.Universe, asOf time.Time, cfg Config) ([]contracts.AttentionRecord, []FetchResult, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	c.logger.WithFields(map[string]interface{}{
		"feeds":   len(feedURLs),
		"tickers": len(u.Tickers),
		"as_of":   asOf.Format(contracts.DateFormat),
		"workers": cfg.Workers,
	}).Info("Starting feed collection")

	type feedEntries struct {
		result  FetchResult
		entries []Entry
	}

	feedCh := make(chan string, len(feedURLs))
	resultCh := make(chan feedEntries, len(feedURLs))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for url := range feedCh {
				select {
				case <-ctx.Done():
					resultCh <- feedEntries{result: FetchResult{FeedURL: url, Error: ctx.Err()}}
					return
				default:
				}

				entries, err := c.fetchFeed(ctx, url)
				if err != nil {
					c.logger.WithError(err).WithFields(map[string]interface{}{
						"worker": workerID,
						"feed":   url,
					}).Error("Failed to fetch feed")
					resultCh <- feedEntries{result: FetchResult{FeedURL: url, Error: err}}
					continue
				}

				resultCh <- feedEntries{
					result:  FetchResult{FeedURL: url, Entries: len(entries)},
					entries: entries,
				}
			}
		}(i)
	}

	for _, url := range feedURLs {
		feedCh <- url
	}
	close(feedCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	agg := newAggregator(u, asOf)
	results := make([]FetchResult, 0, len(feedURLs))

	for fe := range resultCh {
		for _, entry := range fe.entries {
			seen, err := c.dedup.Seen(ctx, entry.DedupKey())
			if err != nil {
				c.logger.WithError(err).Warn("Dedup check failed, treating entry as new")
			}
			if seen {
				continue
			}
			fe.result.NewEntries++
			agg.add(entry)
		}
		results = append(results, fe.result)
	}

	records := agg.records()

	c.logger.WithFields(map[string]interface{}{
		"feeds":   len(results),
		"records": len(records),
	}).Info("Feed collection completed")

	return records, results, nil
}

func (c *Collector) fetchFeed(ctx context.Context, url string) ([]Entry, error) {
	body, err := c.client.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(body, url)
}

// aggregator folds entries into per-(date, ticker) attention counters
type aggregator struct {
	universe *universe.Universe
	asOf     time.Time

	mentions  map[contracts.Key]int
	sentiment map[contracts.Key]float64        // running sum of compound scores
	sources   map[contracts.Key]map[string]bool // distinct feed URLs
}

func newAggregator(u *universe.Universe, asOf time.Time) *aggregator {
	return &aggregator{
		universe:  u,
		asOf:      asOf.UTC().Truncate(24 * time.Hour),
		mentions:  make(map[contracts.Key]int),
		sentiment: make(map[contracts.Key]float64),
		sources:   make(map[contracts.Key]map[string]bool),
	}
}

// add folds one entry in. Each universe ticker the entry mentions gets
// one mention carrying the entry's compound sentiment.
func (a *aggregator) add(entry Entry) {
	tickers := ExtractTickers(entry.Text())
	if len(tickers) == 0 {
		return
	}

	date := a.asOf
	if !entry.Published.IsZero() {
		if d := entry.Published.UTC().Truncate(24 * time.Hour); !d.After(a.asOf) {
			date = d
		}
	}

	score := sentiment.Compound(entry.Text())

	for _, ticker := range tickers {
		if !a.universe.Contains(ticker) {
			continue
		}

		key := contracts.NewKey(date, ticker)
		a.mentions[key]++
		a.sentiment[key] += score

		if a.sources[key] == nil {
			a.sources[key] = make(map[string]bool)
		}
		a.sources[key][entry.Source] = true
	}
}

// records materializes the counters as attention records
func (a *aggregator) records() []contracts.AttentionRecord {
	records := make([]contracts.AttentionRecord, 0, len(a.mentions))
	for key, count := range a.mentions {
		records = append(records, contracts.AttentionRecord{
			Date:          key.Time(),
			Ticker:        key.Ticker,
			MentionCount:  count,
			MeanSentiment: a.sentiment[key] / float64(count),
			SourceCount:   len(a.sources[key]),
		})
	}
	return records
}

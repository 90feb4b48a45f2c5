package prices

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

// Fetcher pulls daily price history for a ticker universe through a
// worker pool, rate-limited so the upstream API is not hammered.
type Fetcher struct {
	source  Source
	limiter *rate.Limiter
	logger  *logger.Logger
}

// Config holds fetcher tuning
type Config struct {
	Workers int
}

// NewFetcher creates a price fetcher over the given source
func NewFetcher(source Source, requestsPerSec float64, log *logger.Logger) *Fetcher {
	var limiter *rate.Limiter
	if requestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), 1)
	}
	return &Fetcher{
		source:  source,
		limiter: limiter,
		logger:  log.Component("prices.fetcher"),
	}
}

// FetchResult reports the outcome of fetching one ticker
type FetchResult struct {
	Ticker string
	Bars   int
	Error  error
}

// FetchAll fetches [from, to] daily history for every ticker. A
// failing ticker is reported in its FetchResult; the rest continue.
func (f *Fetcher) FetchAll(ctx context.Context, tickers []string, from, to time.Time, cfg Config) ([]contracts.PriceRecord, []FetchResult, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	f.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"from":    from.Format(contracts.DateFormat),
		"to":      to.Format(contracts.DateFormat),
		"workers": cfg.Workers,
	}).Info("Starting price collection")

	type tickerResult struct {
		result  FetchResult
		records []contracts.PriceRecord
	}

	tickerCh := make(chan string, len(tickers))
	resultCh := make(chan tickerResult, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for ticker := range tickerCh {
				select {
				case <-ctx.Done():
					resultCh <- tickerResult{result: FetchResult{Ticker: ticker, Error: ctx.Err()}}
					return
				default:
				}

				if f.limiter != nil {
					if err := f.limiter.Wait(ctx); err != nil {
						resultCh <- tickerResult{result: FetchResult{Ticker: ticker, Error: err}}
						return
					}
				}

				records, err := f.source.DailyHistory(ctx, ticker, from, to)
				if err != nil {
					f.logger.WithError(err).WithFields(map[string]interface{}{
						"worker": workerID,
						"ticker": ticker,
					}).Error("Failed to fetch prices")
					resultCh <- tickerResult{result: FetchResult{Ticker: ticker, Error: err}}
					continue
				}

				f.logger.WithFields(map[string]interface{}{
					"worker": workerID,
					"ticker": ticker,
					"bars":   len(records),
				}).Debug("Fetched prices")

				resultCh <- tickerResult{
					result:  FetchResult{Ticker: ticker, Bars: len(records)},
					records: records,
				}
			}
		}(i)
	}

	for _, ticker := range tickers {
		tickerCh <- ticker
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	all := make([]contracts.PriceRecord, 0, len(tickers)*64)
	results := make([]FetchResult, 0, len(tickers))
	failed := 0

	for tr := range resultCh {
		results = append(results, tr.result)
		all = append(all, tr.records...)
		if tr.result.Error != nil {
			failed++
		}
	}

	f.logger.WithFields(map[string]interface{}{
		"tickers": len(results),
		"failed":  failed,
		"bars":    len(all),
	}).Info("Price collection completed")

	return all, results, nil
}

package prices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "error")
}

// fakeSource serves canned bars and records which symbols were asked
type fakeSource struct {
	mu     sync.Mutex
	asked  []string
	failOn map[string]bool
	bars   int
}

func (f *fakeSource) DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceRecord, error) {
	f.mu.Lock()
	f.asked = append(f.asked, symbol)
	f.mu.Unlock()

	if f.failOn[symbol] {
		return nil, fmt.Errorf("no data for %s", symbol)
	}

	records := make([]contracts.PriceRecord, f.bars)
	for i := range records {
		records[i] = contracts.PriceRecord{
			Date:   from.AddDate(0, 0, i),
			Ticker: symbol,
			Open:   99,
			High:   101,
			Low:    98,
			Close:  100,
			Volume: 1000,
		}
	}
	return records, nil
}

func TestFetchAll(t *testing.T) {
	source := &fakeSource{bars: 5}
	fetcher := NewFetcher(source, 0, testLogger())

	tickers := []string{"AAPL", "MSFT", "TSLA"}
	records, results, err := fetcher.FetchAll(context.Background(),
		tickers, time.Now().AddDate(0, 0, -5), time.Now(), Config{Workers: 2})
	require.NoError(t, err)

	assert.Len(t, records, 3*5)
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Error)
		assert.Equal(t, 5, r.Bars)
	}
	assert.ElementsMatch(t, tickers, source.asked)
}

func TestFetchAllContinuesPastFailures(t *testing.T) {
	source := &fakeSource{bars: 3, failOn: map[string]bool{"MSFT": true}}
	fetcher := NewFetcher(source, 0, testLogger())

	records, results, err := fetcher.FetchAll(context.Background(),
		[]string{"AAPL", "MSFT", "TSLA"}, time.Now().AddDate(0, 0, -3), time.Now(), Config{Workers: 1})
	require.NoError(t, err)

	assert.Len(t, records, 2*3, "failed ticker contributes no bars")

	failures := 0
	for _, r := range results {
		if r.Error != nil {
			failures++
			assert.Equal(t, "MSFT", r.Ticker)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestFetchAllHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{bars: 3}
	fetcher := NewFetcher(source, 0, testLogger())

	_, results, err := fetcher.FetchAll(ctx,
		[]string{"AAPL", "MSFT"}, time.Now().AddDate(0, 0, -3), time.Now(), Config{Workers: 1})
	require.NoError(t, err)

	for _, r := range results {
		assert.True(t, errors.Is(r.Error, context.Canceled), r.Ticker)
	}
}

package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"github.com/ejames/nowcast/internal/contracts"
)

// Source provides daily OHLCV history for one symbol. The production
// source is Yahoo; tests substitute a canned one.
type Source interface {
	DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceRecord, error)
}

// YahooSource fetches daily bars from the Yahoo chart API. Symbols are
// expected in dash form for class shares (BRK-B), which is what Yahoo
// serves and what the universe loader normalizes to.
type YahooSource struct{}

// NewYahooSource creates the Yahoo-backed price source
func NewYahooSource() *YahooSource {
	return &YahooSource{}
}

// DailyHistory fetches the inclusive [from, to] daily bar range
func (s *YahooSource) DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceRecord, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)

	records := make([]contracts.PriceRecord, 0)
	adjCloses := make([]decimal.Decimal, 0)

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bar := iter.Bar()
		closePx := bar.Close.InexactFloat64()
		if closePx <= 0 {
			// Yahoo occasionally emits empty bars for holidays
			continue
		}

		records = append(records, contracts.PriceRecord{
			Date:   time.Unix(int64(bar.Timestamp), 0).UTC().Truncate(24 * time.Hour),
			Ticker: symbol,
			Open:   bar.Open.InexactFloat64(),
			High:   bar.High.InexactFloat64(),
			Low:    bar.Low.InexactFloat64(),
			Close:  closePx,
			Volume: int64(bar.Volume),
		})
		adjCloses = append(adjCloses, bar.AdjClose)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart history for %s: %w", symbol, err)
	}

	adjustSplits(records, adjCloses)
	return records, nil
}

// adjustSplits rescales a history by the ratio of adjusted to raw
// close so returns computed downstream are split-consistent
func adjustSplits(records []contracts.PriceRecord, adjClose []decimal.Decimal) {
	if len(adjClose) != len(records) {
		return
	}
	for i := range records {
		adj := adjClose[i].InexactFloat64()
		if adj <= 0 || records[i].Close <= 0 {
			continue
		}
		ratio := adj / records[i].Close
		records[i].Open *= ratio
		records[i].High *= ratio
		records[i].Low *= ratio
		records[i].Close = adj
	}
}

package nowcast

import (
	"io"
	"math"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "error")
}

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// syntheticHistory builds n daily price records for a ticker with a
// deterministic oscillating close so both label classes occur
func syntheticHistory(ticker string, n int, phase float64) []contracts.PriceRecord {
	records := make([]contracts.PriceRecord, n)
	for i := 0; i < n; i++ {
		close := 100 + 10*math.Sin(0.7*float64(i)+phase)
		records[i] = contracts.PriceRecord{
			Date:   day(i),
			Ticker: ticker,
			Open:   close * 0.99,
			High:   close * 1.01,
			Low:    close * 0.98,
			Close:  close,
			Volume: 1_000_000,
		}
	}
	return records
}

// featureRow builds a labeled row with the given feature values; any
// schema column not in vals stays absent
func featureRow(date time.Time, ticker string, vals map[string]float64, label int, fwd float64) contracts.FeatureRow {
	features := make(map[string]contracts.FeatureValue, len(contracts.FeatureColumns))
	for _, col := range contracts.FeatureColumns {
		if v, ok := vals[col]; ok {
			features[col] = contracts.Present(v)
		} else {
			features[col] = contracts.Absent()
		}
	}
	return contracts.FeatureRow{
		Date:          date,
		Ticker:        ticker,
		Features:      features,
		Label:         contracts.Label{Value: label, Present: true},
		ForwardReturn: fwd,
	}
}

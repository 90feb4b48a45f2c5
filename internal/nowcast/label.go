package nowcast

import (
	"github.com/ejames/nowcast/internal/contracts"
)

// Label policy defaults. The threshold is strict: a forward return
// exactly at the threshold is labeled 0.
const (
	// DefaultHorizonDays is the forward return horizon K in trading days
	DefaultHorizonDays = 1
	// DefaultUpThreshold is the forward return a row must strictly
	// exceed to be labeled 1
	DefaultUpThreshold = 0.0
)

// Labeler assigns the binary next-period direction label. For each row
// it computes the ticker's return over the K trading days after the
// row's date; rows whose forward window runs past the end of the
// available history keep an absent label and are excluded downstream.
type Labeler struct {
	horizon   int
	threshold float64
}

// NewLabeler creates a labeler with the given horizon (trading days)
// and up threshold
func NewLabeler(horizonDays int, threshold float64) *Labeler {
	if horizonDays < 1 {
		horizonDays = DefaultHorizonDays
	}
	return &Labeler{horizon: horizonDays, threshold: threshold}
}

// Horizon returns the forecast horizon in trading days
func (l *Labeler) Horizon() int {
	return l.horizon
}

// Assign labels every row of the table in place. The label uses only
// information dated strictly after the row's date, through date + K
// trading days; features are never touched.
func (l *Labeler) Assign(table *contracts.FeatureTable, prices map[string][]contracts.PriceRecord) {
	// date -> history index, per ticker
	index := make(map[string]map[string]int, len(prices))
	for ticker, history := range prices {
		m := make(map[string]int, len(history))
		for i, rec := range history {
			m[rec.Date.Format(contracts.DateFormat)] = i
		}
		index[ticker] = m
	}

	for i := range table.Rows {
		row := &table.Rows[i]
		row.Label = contracts.Label{}
		row.ForwardReturn = 0

		byDate, ok := index[row.Ticker]
		if !ok {
			continue
		}
		pos, ok := byDate[row.Date.Format(contracts.DateFormat)]
		if !ok {
			// attention-only row, no price to project forward from
			continue
		}

		history := prices[row.Ticker]
		if pos+l.horizon >= len(history) {
			// forward window not observable yet
			continue
		}

		fwd := history[pos+l.horizon].Close/history[pos].Close - 1
		row.ForwardReturn = fwd

		label := 0
		if fwd > l.threshold {
			label = 1
		}
		row.Label = contracts.Label{Value: label, Present: true}
	}
}

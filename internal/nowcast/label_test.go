package nowcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/internal/contracts"
)

func buildTable(t *testing.T, prices map[string][]contracts.PriceRecord, from, to int) *contracts.FeatureTable {
	t.Helper()
	table, err := NewBuilder(1, testLogger()).Build(context.Background(), BuildInput{
		Prices: prices,
		From:   day(from),
		To:     day(to),
	})
	require.NoError(t, err)
	return table
}

func TestAssignForwardReturnAndLabel(t *testing.T) {
	history := []contracts.PriceRecord{
		{Date: day(0), Ticker: "AAPL", Close: 100},
		{Date: day(1), Ticker: "AAPL", Close: 110},
		{Date: day(2), Ticker: "AAPL", Close: 99},
	}
	prices := map[string][]contracts.PriceRecord{"AAPL": history}
	table := buildTable(t, prices, 0, 2)

	NewLabeler(1, DefaultUpThreshold).Assign(table, prices)

	// Day 0: next-day return +10% -> label 1
	require.True(t, table.Rows[0].Label.Present)
	assert.Equal(t, 1, table.Rows[0].Label.Value)
	assert.InDelta(t, 0.10, table.Rows[0].ForwardReturn, 1e-12)

	// Day 1: next-day return -10% -> label 0
	require.True(t, table.Rows[1].Label.Present)
	assert.Equal(t, 0, table.Rows[1].Label.Value)

	// Day 2: no forward window -> excluded
	assert.False(t, table.Rows[2].Label.Present)
}

func TestAssignMultiDayHorizon(t *testing.T) {
	history := []contracts.PriceRecord{
		{Date: day(0), Ticker: "AAPL", Close: 100},
		{Date: day(1), Ticker: "AAPL", Close: 90},
		{Date: day(2), Ticker: "AAPL", Close: 120},
		{Date: day(3), Ticker: "AAPL", Close: 121},
	}
	prices := map[string][]contracts.PriceRecord{"AAPL": history}
	table := buildTable(t, prices, 0, 3)

	NewLabeler(2, DefaultUpThreshold).Assign(table, prices)

	// Day 0: close[2]/close[0] - 1 = +20%
	require.True(t, table.Rows[0].Label.Present)
	assert.InDelta(t, 0.20, table.Rows[0].ForwardReturn, 1e-12)
	assert.Equal(t, 1, table.Rows[0].Label.Value)

	// Days 2 and 3: fewer than 2 future trading days
	assert.False(t, table.Rows[2].Label.Present)
	assert.False(t, table.Rows[3].Label.Present)
}

func TestAssignThresholdIsStrict(t *testing.T) {
	history := []contracts.PriceRecord{
		{Date: day(0), Ticker: "AAPL", Close: 100},
		{Date: day(1), Ticker: "AAPL", Close: 100}, // flat: exactly at threshold
		{Date: day(2), Ticker: "AAPL", Close: 100},
	}
	prices := map[string][]contracts.PriceRecord{"AAPL": history}
	table := buildTable(t, prices, 0, 2)

	NewLabeler(1, 0.0).Assign(table, prices)

	// Forward return of exactly 0.0 does not strictly exceed 0.0
	require.True(t, table.Rows[0].Label.Present)
	assert.Equal(t, 0, table.Rows[0].Label.Value)
}

func TestAssignCustomThreshold(t *testing.T) {
	history := []contracts.PriceRecord{
		{Date: day(0), Ticker: "AAPL", Close: 100},
		{Date: day(1), Ticker: "AAPL", Close: 101}, // +1%
		{Date: day(2), Ticker: "AAPL", Close: 101},
	}
	prices := map[string][]contracts.PriceRecord{"AAPL": history}

	table := buildTable(t, prices, 0, 2)
	NewLabeler(1, 0.02).Assign(table, prices)
	assert.Equal(t, 0, table.Rows[0].Label.Value, "+1%% must not beat a 2%% threshold")

	table = buildTable(t, prices, 0, 2)
	NewLabeler(1, 0.005).Assign(table, prices)
	assert.Equal(t, 1, table.Rows[0].Label.Value)
}

func TestLabeledFiltersAbsentLabels(t *testing.T) {
	history := syntheticHistory("AAPL", 10, 0)
	prices := map[string][]contracts.PriceRecord{"AAPL": history}
	table := buildTable(t, prices, 0, 9)

	NewLabeler(3, DefaultUpThreshold).Assign(table, prices)

	labeled := table.Labeled()
	// Last 3 rows have no observable 3-day forward window
	assert.Len(t, labeled, 7)
	for _, row := range labeled {
		assert.True(t, row.Label.Present)
	}
}

package nowcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/internal/contracts"
)

func TestBuildEmitsRowsForTickersWithoutAttention(t *testing.T) {
	// 3 tickers x 5 dates, one ticker has no attention data at all.
	// The builder must still emit its rows, with attention features
	// absent rather than dropping the ticker.
	prices := map[string][]contracts.PriceRecord{
		"AAPL": syntheticHistory("AAPL", 5, 0),
		"MSFT": syntheticHistory("MSFT", 5, 1),
		"TSLA": syntheticHistory("TSLA", 5, 2),
	}

	attention := make(map[contracts.Key]map[string]float64)
	for _, ticker := range []string{"AAPL", "MSFT"} {
		for i := 0; i < 5; i++ {
			attention[contracts.NewKey(day(i), ticker)] = map[string]float64{
				"mentions":      3,
				"avg_sentiment": 0.1,
				"source_count":  1,
			}
		}
	}

	b := NewBuilder(2, testLogger())
	table, err := b.Build(context.Background(), BuildInput{
		Prices:    prices,
		Attention: attention,
		From:      day(0),
		To:        day(4),
	})
	require.NoError(t, err)

	assert.Equal(t, 15, table.Len())

	tslaRows := 0
	for _, row := range table.Rows {
		if row.Ticker != "TSLA" {
			continue
		}
		tslaRows++
		assert.False(t, row.Features["mentions"].Present, "TSLA mentions must be absent, not zero")
		assert.False(t, row.Features["avg_sentiment"].Present)
	}
	assert.Equal(t, 5, tslaRows)
}

func TestBuildKeysAreUnique(t *testing.T) {
	prices := map[string][]contracts.PriceRecord{
		"AAPL": syntheticHistory("AAPL", 30, 0),
		"MSFT": syntheticHistory("MSFT", 30, 1),
	}
	attention := map[contracts.Key]map[string]float64{
		contracts.NewKey(day(3), "AAPL"): {"mentions": 1, "avg_sentiment": 0, "source_count": 1},
	}

	b := NewBuilder(4, testLogger())
	table, err := b.Build(context.Background(), BuildInput{
		Prices:    prices,
		Attention: attention,
		From:      day(0),
		To:        day(29),
	})
	require.NoError(t, err)

	seen := make(map[contracts.Key]bool)
	for _, row := range table.Rows {
		key := row.Key()
		assert.False(t, seen[key], "duplicate key %v", key)
		seen[key] = true
	}
}

func TestBuildRowsAreSortedAndDeterministic(t *testing.T) {
	prices := map[string][]contracts.PriceRecord{
		"TSLA": syntheticHistory("TSLA", 10, 2),
		"AAPL": syntheticHistory("AAPL", 10, 0),
		"MSFT": syntheticHistory("MSFT", 10, 1),
	}

	b := NewBuilder(3, testLogger())
	in := BuildInput{Prices: prices, From: day(0), To: day(9)}

	first, err := b.Build(context.Background(), in)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), in)
	require.NoError(t, err)

	// Merge by key makes worker completion order irrelevant
	require.Equal(t, first.Len(), second.Len())
	for i := range first.Rows {
		assert.Equal(t, first.Rows[i].Key(), second.Rows[i].Key())
		assert.Equal(t, first.Rows[i].Features, second.Rows[i].Features)
		if i > 0 {
			assert.True(t, first.Rows[i-1].Key().Less(first.Rows[i].Key()), "rows must be sorted")
		}
	}
}

func TestBuildFeaturesAreCausal(t *testing.T) {
	// Removing future price rows must not change feature values of
	// rows dated before the removed data.
	full := syntheticHistory("AAPL", 40, 0)
	truncated := full[:30]

	b := NewBuilder(1, testLogger())

	fullTable, err := b.Build(context.Background(), BuildInput{
		Prices: map[string][]contracts.PriceRecord{"AAPL": full},
		From:   day(0), To: day(29),
	})
	require.NoError(t, err)

	truncTable, err := b.Build(context.Background(), BuildInput{
		Prices: map[string][]contracts.PriceRecord{"AAPL": truncated},
		From:   day(0), To: day(29),
	})
	require.NoError(t, err)

	require.Equal(t, fullTable.Len(), truncTable.Len())
	for i := range fullTable.Rows {
		assert.Equal(t, fullTable.Rows[i].Features, truncTable.Rows[i].Features,
			"features at %s changed when future rows were removed", fullTable.Rows[i].Date.Format(contracts.DateFormat))
	}
}

func TestBuildLookbackWindowsYieldAbsent(t *testing.T) {
	history := syntheticHistory("AAPL", 25, 0)

	b := NewBuilder(1, testLogger())
	table, err := b.Build(context.Background(), BuildInput{
		Prices: map[string][]contracts.PriceRecord{"AAPL": history},
		From:   day(0), To: day(24),
	})
	require.NoError(t, err)
	require.Equal(t, 25, table.Len())

	// Day 0: nothing derivable
	first := table.Rows[0]
	for _, col := range []string{"r1", "r5", "r20", "vol20", "rsi14", "hi52_dist", "lo52_dist"} {
		assert.False(t, first.Features[col].Present, "%s should be absent on day 0", col)
	}

	// Day 1: one prior day, only r1
	assert.True(t, table.Rows[1].Features["r1"].Present)
	assert.False(t, table.Rows[1].Features["r5"].Present)

	// Day 19: r5 yes, r20/vol20 not yet, 52wk distances not yet
	d19 := table.Rows[19]
	assert.True(t, d19.Features["r5"].Present)
	assert.False(t, d19.Features["r20"].Present)
	assert.False(t, d19.Features["vol20"].Present)
	assert.False(t, d19.Features["hi52_dist"].Present)

	// Day 20: full 20-day windows available, never partial values
	d20 := table.Rows[20]
	assert.True(t, d20.Features["r20"].Present)
	assert.True(t, d20.Features["vol20"].Present)
	assert.True(t, d20.Features["hi52_dist"].Present)
	assert.True(t, d20.Features["lo52_dist"].Present)

	// RSI needs its 14-day seed
	assert.False(t, table.Rows[13].Features["rsi14"].Present)
	assert.True(t, table.Rows[14].Features["rsi14"].Present)
}

func TestBuildDerivedValues(t *testing.T) {
	history := syntheticHistory("AAPL", 25, 0)

	b := NewBuilder(1, testLogger())
	table, err := b.Build(context.Background(), BuildInput{
		Prices: map[string][]contracts.PriceRecord{"AAPL": history},
		From:   day(0), To: day(24),
	})
	require.NoError(t, err)

	r1 := table.Rows[1].Features["r1"]
	require.True(t, r1.Present)
	assert.InDelta(t, history[1].Close/history[0].Close-1, r1.Value, 1e-12)

	r5 := table.Rows[10].Features["r5"]
	require.True(t, r5.Present)
	assert.InDelta(t, history[10].Close/history[5].Close-1, r5.Value, 1e-12)

	// 52-week distances against the running extremes
	row := table.Rows[24]
	hi, lo := history[0].Close, history[0].Close
	for _, rec := range history[:25] {
		if rec.Close > hi {
			hi = rec.Close
		}
		if rec.Close < lo {
			lo = rec.Close
		}
	}
	assert.InDelta(t, history[24].Close/hi-1, row.Features["hi52_dist"].Value, 1e-12)
	assert.InDelta(t, history[24].Close/lo-1, row.Features["lo52_dist"].Value, 1e-12)
}

func TestBuildAttentionOnlyKeysGetRows(t *testing.T) {
	attention := map[contracts.Key]map[string]float64{
		contracts.NewKey(day(2), "GME"): {"mentions": 500, "avg_sentiment": 0.8, "source_count": 3},
	}

	b := NewBuilder(1, testLogger())
	table, err := b.Build(context.Background(), BuildInput{
		Prices:    map[string][]contracts.PriceRecord{},
		Attention: attention,
		From:      day(0), To: day(4),
	})
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	row := table.Rows[0]
	assert.Equal(t, "GME", row.Ticker)
	assert.True(t, row.Features["mentions"].Present)
	assert.False(t, row.Features["r1"].Present)
	assert.False(t, row.Label.Present)
}

func TestBuildRespectsDateRange(t *testing.T) {
	history := syntheticHistory("AAPL", 10, 0)

	b := NewBuilder(1, testLogger())
	table, err := b.Build(context.Background(), BuildInput{
		Prices: map[string][]contracts.PriceRecord{"AAPL": history},
		From:   day(3), To: day(6),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, table.Len())
	// History before the range still feeds lookbacks: day 3 has r1
	assert.True(t, table.Rows[0].Features["r1"].Present)
}

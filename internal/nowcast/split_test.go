package nowcast

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/internal/contracts"
)

// splitRows builds one labeled row per (date, ticker) over nDays days
func splitRows(nDays int, tickers ...string) []contracts.FeatureRow {
	var rows []contracts.FeatureRow
	for i := 0; i < nDays; i++ {
		for _, ticker := range tickers {
			rows = append(rows, featureRow(day(i), ticker, map[string]float64{"r1": 0.01}, i%2, 0.01))
		}
	}
	return rows
}

func TestSplitByCutoffInvariant(t *testing.T) {
	rows := splitRows(20, "AAPL", "MSFT")
	s := NewSplitter(1, 1)

	train, holdout, err := s.SplitByCutoff(rows, day(14))
	require.NoError(t, err)
	require.NotEmpty(t, train)
	require.NotEmpty(t, holdout)

	// max(train dates) < min(holdout dates), always
	maxTrain := train[0].Date
	for _, r := range train {
		if r.Date.After(maxTrain) {
			maxTrain = r.Date
		}
	}
	for _, r := range holdout {
		assert.True(t, maxTrain.Before(r.Date))
	}

	assert.Len(t, train, 30)   // days 0..14
	assert.Len(t, holdout, 10) // days 15..19
}

func TestSplitByHoldoutDaysTranslatesDeterministically(t *testing.T) {
	rows := splitRows(30, "AAPL")
	s := NewSplitter(1, 1)

	train1, holdout1, err := s.SplitByHoldoutDays(rows, 5)
	require.NoError(t, err)
	train2, holdout2, err := s.SplitByHoldoutDays(rows, 5)
	require.NoError(t, err)

	assert.Equal(t, train1, train2)
	assert.Equal(t, holdout1, holdout2)

	// Exactly the last 5 distinct dates are reserved
	assert.Len(t, holdout1, 5)
	assert.Equal(t, day(25), holdout1[0].Date)
}

func TestSplitFailsWithEmptyHoldout(t *testing.T) {
	rows := splitRows(60, "AAPL")
	s := NewSplitter(1, 1)

	// Cutoff beyond all dates: zero rows after it
	_, _, err := s.SplitByCutoff(rows, day(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
}

func TestSplitFailsBelowMinimumRows(t *testing.T) {
	tests := []struct {
		name       string
		minTrain   int
		minHoldout int
		cutoffDay  int
	}{
		{"train too small", 50, 1, 3},
		{"holdout too small", 1, 30, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := splitRows(20, "AAPL")
			s := NewSplitter(tt.minTrain, tt.minHoldout)

			_, _, err := s.SplitByCutoff(rows, day(tt.cutoffDay))
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
		})
	}
}

func TestSplitFailsWhenHoldoutDaysExceedHistory(t *testing.T) {
	rows := splitRows(10, "AAPL")
	s := NewSplitter(1, 1)

	_, _, err := s.SplitByHoldoutDays(rows, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
}

func TestSplitNeverShuffles(t *testing.T) {
	rows := splitRows(40, "AAPL", "MSFT", "TSLA")
	s := NewSplitter(1, 1)

	for _, holdoutDays := range []int{5, 10, 20} {
		train, holdout, err := s.SplitByHoldoutDays(rows, holdoutDays)
		require.NoError(t, err, fmt.Sprintf("holdoutDays=%d", holdoutDays))

		assert.Len(t, holdout, holdoutDays*3)
		assert.Len(t, train, (40-holdoutDays)*3)
	}
}

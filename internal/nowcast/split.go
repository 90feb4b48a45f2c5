package nowcast

import (
	"fmt"
	"sort"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
)

// Split thresholds. Partitions below these sizes cannot support a
// stable fit or a ten-decile evaluation.
const (
	// DefaultHoldoutDays is the number of distinct trading days
	// reserved for holdout evaluation
	DefaultHoldoutDays = 60
	// DefaultMinTrainRows is the smallest training partition accepted
	DefaultMinTrainRows = 50
	// DefaultMinHoldoutRows is the smallest holdout partition accepted
	DefaultMinHoldoutRows = 10
)

// Splitter partitions labeled rows into train and holdout sets by a
// strict date cutoff. Every training row's date precedes every holdout
// row's date; rows are never shuffled across time.
type Splitter struct {
	minTrainRows   int
	minHoldoutRows int
}

// NewSplitter creates a splitter with the given minimum partition sizes
func NewSplitter(minTrainRows, minHoldoutRows int) *Splitter {
	if minTrainRows < 1 {
		minTrainRows = DefaultMinTrainRows
	}
	if minHoldoutRows < 1 {
		minHoldoutRows = DefaultMinHoldoutRows
	}
	return &Splitter{minTrainRows: minTrainRows, minHoldoutRows: minHoldoutRows}
}

// SplitByCutoff partitions rows: train holds dates <= cutoff, holdout
// holds dates > cutoff.
func (s *Splitter) SplitByCutoff(rows []contracts.FeatureRow, cutoff time.Time) (train, holdout []contracts.FeatureRow, err error) {
	for _, row := range rows {
		if row.Date.After(cutoff) {
			holdout = append(holdout, row)
		} else {
			train = append(train, row)
		}
	}

	if err := s.check(train, holdout, cutoff); err != nil {
		return nil, nil, err
	}
	return train, holdout, nil
}

// SplitByHoldoutDays translates a holdout length in distinct trading
// days into a cutoff date deterministically (the last holdoutDays
// distinct dates become the holdout) and splits there.
func (s *Splitter) SplitByHoldoutDays(rows []contracts.FeatureRow, holdoutDays int) (train, holdout []contracts.FeatureRow, err error) {
	dates := distinctDates(rows)
	if len(dates) <= holdoutDays {
		return nil, nil, fmt.Errorf("%w: %d distinct dates cannot reserve %d holdout days",
			contracts.ErrInsufficientData, len(dates), holdoutDays)
	}

	cutoff := dates[len(dates)-holdoutDays-1]
	return s.SplitByCutoff(rows, cutoff)
}

// check enforces partition sizes and the temporal invariant
func (s *Splitter) check(train, holdout []contracts.FeatureRow, cutoff time.Time) error {
	if len(train) < s.minTrainRows {
		return fmt.Errorf("%w: %d train rows at cutoff %s (need >= %d)",
			contracts.ErrInsufficientData, len(train), cutoff.Format(contracts.DateFormat), s.minTrainRows)
	}
	if len(holdout) < s.minHoldoutRows {
		return fmt.Errorf("%w: %d holdout rows after cutoff %s (need >= %d)",
			contracts.ErrInsufficientData, len(holdout), cutoff.Format(contracts.DateFormat), s.minHoldoutRows)
	}

	maxTrain := train[0].Date
	for _, r := range train[1:] {
		if r.Date.After(maxTrain) {
			maxTrain = r.Date
		}
	}
	minHoldout := holdout[0].Date
	for _, r := range holdout[1:] {
		if r.Date.Before(minHoldout) {
			minHoldout = r.Date
		}
	}
	if !maxTrain.Before(minHoldout) {
		// unreachable for a cutoff split, kept as a hard failure
		// because a leaking split must never score a model
		return fmt.Errorf("%w: train max %s not before holdout min %s",
			contracts.ErrInsufficientData,
			maxTrain.Format(contracts.DateFormat), minHoldout.Format(contracts.DateFormat))
	}

	return nil
}

// distinctDates returns the sorted distinct dates of rows
func distinctDates(rows []contracts.FeatureRow) []time.Time {
	seen := make(map[string]time.Time)
	for _, r := range rows {
		seen[r.Date.Format(contracts.DateFormat)] = r.Date
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors for failures that abort a run. A wrong but
// successfully computed metric is worse than a hard failure, so
// anything touching split validity, label correctness, or metric
// correctness surfaces one of these instead of degrading silently.
var (
	// ErrInsufficientData means a valid split or decile cannot be formed
	ErrInsufficientData = errors.New("insufficient data")
	// ErrTraining means the training set is degenerate (single class)
	ErrTraining = errors.New("training failed")
	// ErrTimeout means the run-wide budget was exceeded; no partial
	// metrics are emitted
	ErrTimeout = errors.New("run budget exceeded")
)

// MalformedRecordError reports a raw input record that lacks a
// resolvable date or ticker, or carries an out-of-domain value.
// Recovery is local: the record is dropped and counted, the batch
// continues.
type MalformedRecordError struct {
	Source string // which ingestion source produced the record
	Ticker string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Ticker == "" {
		return fmt.Sprintf("malformed %s record: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("malformed %s record for %s: %s", e.Source, e.Ticker, e.Reason)
}

package contracts

import "time"

// SchemaVersion identifies the feature column layout. Bump whenever
// FeatureColumns changes so persisted tables are never mixed.
const SchemaVersion = "v1"

// FeatureColumns is the fixed, ordered column schema of a feature table.
// Price-derived columns first, attention columns last.
var FeatureColumns = []string{
	"r1", "r5", "r20",
	"vol20", "rsi14",
	"hi52_dist", "lo52_dist",
	"mentions", "avg_sentiment", "source_count",
}

// FeatureValue is a feature observation that distinguishes "absent"
// from zero. Absent values survive untouched through the pipeline;
// only the trainer's imputation rule may replace them.
type FeatureValue struct {
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
}

// Present wraps an observed value
func Present(v float64) FeatureValue {
	return FeatureValue{Value: v, Present: true}
}

// Absent marks a value that was not observed
func Absent() FeatureValue {
	return FeatureValue{}
}

// Label is the binary next-period direction target. Absent means the
// forward window was not observable and the row is excluded from
// training and evaluation.
type Label struct {
	Value   int  `json:"value"` // 0 or 1
	Present bool `json:"present"`
}

// FeatureRow is one (date, ticker) observation in the feature table.
// Features holds every column of the schema, absent ones included.
// ForwardReturn carries the realized K-day return backing the label;
// it exists only to feed holdout evaluation and is never a feature.
type FeatureRow struct {
	Date          time.Time               `json:"date"`
	Ticker        string                  `json:"ticker"`
	Features      map[string]FeatureValue `json:"features"`
	Label         Label                   `json:"label"`
	ForwardReturn float64                 `json:"forward_return"`
}

// Key returns the row's (date, ticker) key
func (r *FeatureRow) Key() Key {
	return NewKey(r.Date, r.Ticker)
}

// FeatureTable is a finalized, read-only snapshot of feature rows for
// a date range. Rows are sorted by (date, ticker) and keys are unique.
type FeatureTable struct {
	SchemaVersion string       `json:"schema_version"`
	Columns       []string     `json:"columns"`
	Rows          []FeatureRow `json:"rows"`
}

// Len returns the number of rows
func (t *FeatureTable) Len() int {
	return len(t.Rows)
}

// Labeled returns only the rows whose label is present
func (t *FeatureTable) Labeled() []FeatureRow {
	out := make([]FeatureRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		if r.Label.Present {
			out = append(out, r)
		}
	}
	return out
}

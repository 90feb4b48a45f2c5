package contracts

import "time"

// PredictionRow is one scored holdout row. Created after model scoring,
// consumed only by the evaluator, discarded once the run's metrics are
// emitted.
type PredictionRow struct {
	Date          time.Time `json:"date"`
	Ticker        string    `json:"ticker"`
	Probability   float64   `json:"probability"` // P(label == 1), in [0, 1]
	ForwardReturn float64   `json:"forward_return"`
	Label         int       `json:"label"`
}

// BaselineAccuracy is the coin-flip accuracy a binary direction
// classifier must beat.
const BaselineAccuracy = 0.5

// RunMetrics is the per-run evaluation result exposed to downstream
// consumers (reports, dashboards). Spreads are NaN when the holdout is
// too small to form ten deciles.
type RunMetrics struct {
	ModelName              string  `json:"model_name"`
	HoldoutAccuracy        float64 `json:"holdout_accuracy"`
	BaselineAccuracy       float64 `json:"baseline_accuracy"`
	DecileSpreadDaily      float64 `json:"decile_spread_daily"`
	DecileSpreadAnnualized float64 `json:"decile_spread_annualized"`
	NTrain                 int     `json:"n_train"`
	NHoldout               int     `json:"n_holdout"`
}

package handlers

import (
	"math"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
)

// MetricsPayload is the JSON shape of run metrics. Undefined values
// (NaN accuracy on an empty holdout, NaN spreads below ten rows)
// serialize as null, which encoding/json cannot do for raw NaN.
type MetricsPayload struct {
	ModelName              string   `json:"model_name"`
	RunAt                  string   `json:"run_at,omitempty"`
	HoldoutAccuracy        *float64 `json:"holdout_accuracy"`
	BaselineAccuracy       float64  `json:"baseline_accuracy"`
	DecileSpreadDaily      *float64 `json:"decile_spread_daily"`
	DecileSpreadAnnualized *float64 `json:"decile_spread_annualized"`
	NTrain                 int      `json:"n_train"`
	NHoldout               int      `json:"n_holdout"`
}

// NewMetricsPayload converts run metrics for JSON responses
func NewMetricsPayload(m contracts.RunMetrics, runAt time.Time) MetricsPayload {
	p := MetricsPayload{
		ModelName:              m.ModelName,
		HoldoutAccuracy:        finiteOrNil(m.HoldoutAccuracy),
		BaselineAccuracy:       m.BaselineAccuracy,
		DecileSpreadDaily:      finiteOrNil(m.DecileSpreadDaily),
		DecileSpreadAnnualized: finiteOrNil(m.DecileSpreadAnnualized),
		NTrain:                 m.NTrain,
		NHoldout:               m.NHoldout,
	}
	if !runAt.IsZero() {
		p.RunAt = runAt.UTC().Format(time.RFC3339)
	}
	return p
}

// NewMetricsPayloads converts a run's metrics slice
func NewMetricsPayloads(metrics []contracts.RunMetrics, runAt time.Time) []MetricsPayload {
	out := make([]MetricsPayload, len(metrics))
	for i, m := range metrics {
		out[i] = NewMetricsPayload(m, runAt)
	}
	return out
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

package nowcast

import (
	"math"
	"sort"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

// TradingDaysPerYear is the annualization base for daily horizons
const TradingDaysPerYear = 252

// decileCount partitions ranked predictions into this many groups
const decileCount = 10

// Evaluator scores ranked holdout predictions with the decile-spread
// metric. Ranking is fully deterministic: probability descending, ties
// broken by ticker lexical order then date, so repeated runs over
// identical inputs produce identical decile membership.
type Evaluator struct {
	horizon int // forecast horizon K in trading days
	logger  *logger.Logger
}

// NewEvaluator creates an evaluator for the given forecast horizon
func NewEvaluator(horizonDays int, log *logger.Logger) *Evaluator {
	if horizonDays < 1 {
		horizonDays = DefaultHorizonDays
	}
	return &Evaluator{horizon: horizonDays, logger: log.Component("nowcast.evaluator")}
}

// Evaluate computes the run metrics for one model's holdout
// predictions. With fewer than ten rows a decile would be empty, so
// both spreads report NaN rather than failing the run.
func (e *Evaluator) Evaluate(modelName string, preds []contracts.PredictionRow, nTrain int) contracts.RunMetrics {
	metrics := contracts.RunMetrics{
		ModelName:              modelName,
		BaselineAccuracy:       contracts.BaselineAccuracy,
		HoldoutAccuracy:        math.NaN(),
		DecileSpreadDaily:      math.NaN(),
		DecileSpreadAnnualized: math.NaN(),
		NTrain:                 nTrain,
		NHoldout:               len(preds),
	}

	if len(preds) == 0 {
		return metrics
	}

	metrics.HoldoutAccuracy = accuracy(preds)

	if len(preds) >= decileCount {
		ranked := rankPredictions(preds)
		sizes := decileSizes(len(ranked))

		top := ranked[:sizes[0]]
		bottom := ranked[len(ranked)-sizes[decileCount-1]:]

		spread := meanForwardReturn(top) - meanForwardReturn(bottom)
		metrics.DecileSpreadDaily = spread
		metrics.DecileSpreadAnnualized = annualize(spread, e.horizon)
	}

	e.logger.WithFields(map[string]interface{}{
		"model":             modelName,
		"holdout":           len(preds),
		"accuracy":          metrics.HoldoutAccuracy,
		"spread_daily":      metrics.DecileSpreadDaily,
		"spread_annualized": metrics.DecileSpreadAnnualized,
	}).Info("Holdout evaluated")

	return metrics
}

// rankPredictions returns a copy sorted by probability descending,
// ties by ticker lexical order, then date
func rankPredictions(preds []contracts.PredictionRow) []contracts.PredictionRow {
	ranked := append([]contracts.PredictionRow(nil), preds...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		if ranked[i].Ticker != ranked[j].Ticker {
			return ranked[i].Ticker < ranked[j].Ticker
		}
		return ranked[i].Date.Before(ranked[j].Date)
	})
	return ranked
}

// decileSizes splits n rows into ten groups of as-equal-as-possible
// size. Remainder rows go to the lowest-ranked deciles: with n = 10q+r,
// the bottom r deciles hold q+1 rows and the rest hold q.
func decileSizes(n int) []int {
	q, r := n/decileCount, n%decileCount
	sizes := make([]int, decileCount)
	for i := range sizes {
		sizes[i] = q
	}
	for j := 0; j < r; j++ {
		sizes[decileCount-1-j]++
	}
	return sizes
}

// accuracy is the fraction of rows where the 0.5-thresholded
// probability matches the realized label
func accuracy(preds []contracts.PredictionRow) float64 {
	correct := 0
	for _, p := range preds {
		predicted := 0
		if p.Probability >= 0.5 {
			predicted = 1
		}
		if predicted == p.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(preds))
}

// annualize compounds a per-period spread into an annual rate. The
// exponent ties to the forecast horizon K so multi-day horizons
// compound over 252/K periods per year instead of assuming daily.
func annualize(spread float64, horizonDays int) float64 {
	return math.Pow(1+spread, float64(TradingDaysPerYear)/float64(horizonDays)) - 1
}

func meanForwardReturn(preds []contracts.PredictionRow) float64 {
	if len(preds) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, p := range preds {
		sum += p.ForwardReturn
	}
	return sum / float64(len(preds))
}

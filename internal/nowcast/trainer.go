package nowcast

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

// Model is the fit/score contract every classifier variant conforms
// to. Variants are selected by contracts.ModelKind, never by runtime
// type inspection.
type Model interface {
	Name() string
	Fit(ctx context.Context, X [][]float64, y []int) error
	Score(x []float64) float64
}

// Trainer fits classifier variants on a training partition. Absent
// feature values are imputed with the median of the training column —
// that is the single imputation rule of the pipeline, recorded in the
// fitted model so scoring holdout rows reuses training medians and
// never peeks at holdout data. Given a fixed seed the trainer is fully
// deterministic.
type Trainer struct {
	seed   int64
	logger *logger.Logger
}

// NewTrainer creates a trainer with the ensemble seed
func NewTrainer(seed int64, log *logger.Logger) *Trainer {
	return &Trainer{seed: seed, logger: log.Component("nowcast.trainer")}
}

// Fitted is a trained model plus the feature plumbing needed to score
// arbitrary rows consistently with how the model was fit.
type Fitted struct {
	Model   Model
	Columns []string
	Medians []float64 // training-column medians used for imputation
}

// Train fits the selected variant on the training rows.
// Returns contracts.ErrTraining when the labels are single-class.
func (t *Trainer) Train(ctx context.Context, kind contracts.ModelKind, train []contracts.FeatureRow) (*Fitted, error) {
	X, y := designMatrix(train)

	pos := 0
	for _, label := range y {
		pos += label
	}
	if pos == 0 || pos == len(y) {
		return nil, fmt.Errorf("%w: training labels are single-class (%d positive of %d)",
			contracts.ErrTraining, pos, len(y))
	}

	medians := columnMedians(X)
	impute(X, medians)

	model, err := t.newModel(kind)
	if err != nil {
		return nil, err
	}

	if err := model.Fit(ctx, X, y); err != nil {
		return nil, fmt.Errorf("fit %s: %w", model.Name(), err)
	}

	t.logger.WithFields(map[string]interface{}{
		"model":    model.Name(),
		"rows":     len(train),
		"positive": pos,
		"columns":  len(contracts.FeatureColumns),
	}).Info("Model trained")

	return &Fitted{
		Model:   model,
		Columns: append([]string(nil), contracts.FeatureColumns...),
		Medians: medians,
	}, nil
}

// newModel builds the variant for a kind with deterministic seeding
func (t *Trainer) newModel(kind contracts.ModelKind) (Model, error) {
	switch kind {
	case contracts.ModelLinear:
		return newLogisticModel(), nil
	case contracts.ModelForest:
		return newForestModel(t.seed), nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
}

// ScoreRow scores one feature row, imputing its absent values with the
// training medians
func (f *Fitted) ScoreRow(row contracts.FeatureRow) float64 {
	x := make([]float64, len(f.Columns))
	for j, col := range f.Columns {
		if fv := row.Features[col]; fv.Present {
			x[j] = fv.Value
		} else {
			x[j] = f.Medians[j]
		}
	}
	return f.Model.Score(x)
}

// designMatrix lays rows out in fixed schema column order, NaN for
// absent values
func designMatrix(rows []contracts.FeatureRow) ([][]float64, []int) {
	X := make([][]float64, len(rows))
	y := make([]int, len(rows))

	for i, row := range rows {
		x := make([]float64, len(contracts.FeatureColumns))
		for j, col := range contracts.FeatureColumns {
			if fv := row.Features[col]; fv.Present {
				x[j] = fv.Value
			} else {
				x[j] = math.NaN()
			}
		}
		X[i] = x
		y[i] = row.Label.Value
	}

	return X, y
}

// columnMedians computes the median of each column's present values.
// A column with no present values at all imputes to zero.
func columnMedians(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}

	medians := make([]float64, len(X[0]))
	col := make([]float64, 0, len(X))

	for j := range medians {
		col = col[:0]
		for i := range X {
			if !math.IsNaN(X[i][j]) {
				col = append(col, X[i][j])
			}
		}
		medians[j] = median(col)
	}
	return medians
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// impute replaces NaN cells with the column median, in place
func impute(X [][]float64, medians []float64) {
	for i := range X {
		for j := range X[i] {
			if math.IsNaN(X[i][j]) {
				X[i][j] = medians[j]
			}
		}
	}
}

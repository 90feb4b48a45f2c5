package nowcast

import (
	"context"
	"math"
)

// Logistic regression hyperparameters. Full-batch gradient descent on
// standardized features; no randomness anywhere, so identical inputs
// always produce identical weights.
const (
	logisticIterations = 500
	logisticLearnRate  = 0.1
	logisticL2         = 1e-4
)

// logisticModel is the linear classifier variant
type logisticModel struct {
	weights []float64
	bias    float64

	// training-set standardization, replayed at scoring time
	means []float64
	stds  []float64
}

func newLogisticModel() *logisticModel {
	return &logisticModel{}
}

func (m *logisticModel) Name() string {
	return "logistic"
}

// Fit runs full-batch gradient descent on the cross-entropy loss
func (m *logisticModel) Fit(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	p := len(X[0])

	m.means, m.stds = columnStats(X)
	Z := standardize(X, m.means, m.stds)

	m.weights = make([]float64, p)
	m.bias = 0

	gradW := make([]float64, p)
	for iter := 0; iter < logisticIterations; iter++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i := 0; i < n; i++ {
			err := sigmoid(dot(m.weights, Z[i])+m.bias) - float64(y[i])
			for j := 0; j < p; j++ {
				gradW[j] += err * Z[i][j]
			}
			gradB += err
		}

		scale := logisticLearnRate / float64(n)
		for j := 0; j < p; j++ {
			m.weights[j] -= scale*gradW[j] + logisticLearnRate*logisticL2*m.weights[j]
		}
		m.bias -= scale * gradB
	}

	return nil
}

// Score returns P(label == 1) for a feature vector
func (m *logisticModel) Score(x []float64) float64 {
	z := make([]float64, len(x))
	for j := range x {
		z[j] = (x[j] - m.means[j]) / m.stds[j]
	}
	return sigmoid(dot(m.weights, z) + m.bias)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// columnStats computes per-column mean and std; constant columns get
// std 1 so standardization never divides by zero
func columnStats(X [][]float64) (means, stds []float64) {
	n := len(X)
	p := len(X[0])

	means = make([]float64, p)
	stds = make([]float64, p)

	for j := 0; j < p; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += X[i][j]
		}
		means[j] = sum / float64(n)

		variance := 0.0
		for i := 0; i < n; i++ {
			d := X[i][j] - means[j]
			variance += d * d
		}
		stds[j] = math.Sqrt(variance / float64(n))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

func standardize(X [][]float64, means, stds []float64) [][]float64 {
	Z := make([][]float64, len(X))
	for i := range X {
		z := make([]float64, len(X[i]))
		for j := range X[i] {
			z[j] = (X[i][j] - means[j]) / stds[j]
		}
		Z[i] = z
	}
	return Z
}

package contracts

import "fmt"

// ModelKind selects a classifier variant. The set is fixed and
// enumerated: every kind conforms to the same fit/score contract and
// is chosen by explicit configuration, never by runtime inspection.
type ModelKind string

const (
	// ModelLinear is a logistic-regression style linear classifier
	ModelLinear ModelKind = "linear"
	// ModelForest is a bootstrapped tree-ensemble classifier
	ModelForest ModelKind = "forest"
)

// ParseModelKind validates a configured model kind
func ParseModelKind(s string) (ModelKind, error) {
	switch ModelKind(s) {
	case ModelLinear, ModelForest:
		return ModelKind(s), nil
	default:
		return "", fmt.Errorf("unknown model kind %q (want linear or forest)", s)
	}
}

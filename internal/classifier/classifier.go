// Package classifier defines the contracts for the static (single frame) and
// sequence (frame window) sign classifiers, the feature normalization applied
// before classification, and the classifier implementations shipped with the
// engine.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/signtalk/internal/labels"
)

// ErrDimensionMismatch is returned when a feature vector does not match the
// width a classifier or normalizer was built for.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// Prediction is a classifier output.
type Prediction struct {
	Label      labels.Label `json:"label"`
	Confidence float64      `json:"confidence"`
}

// Static classifies a single frame's feature vector.
type Static interface {
	// InputDim is the expected vector length.
	InputDim() int
	Classify(ctx context.Context, features []float64) (Prediction, error)
}

// Sequence classifies a fixed-length window of per-frame feature rows.
type Sequence interface {
	// Timesteps is the expected number of rows.
	Timesteps() int
	// InputDim is the expected row width.
	InputDim() int
	Classify(ctx context.Context, rows [][]float64) (Prediction, error)
}

// Epsilon keeps normalization finite for constant features.
const Epsilon = 1e-8

// Normalizer standardizes feature vectors with per-feature constants computed
// at training time. Std values already include Epsilon.
type Normalizer struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Dim returns the vector width the normalizer was built for.
func (n *Normalizer) Dim() int {
	if n == nil {
		return 0
	}
	return len(n.Mean)
}

// Validate checks that Mean and Std have the same width.
func (n *Normalizer) Validate() error {
	if n == nil {
		return nil
	}
	if len(n.Mean) != len(n.Std) {
		return fmt.Errorf("%w: normalizer mean has %d values, std has %d",
			ErrDimensionMismatch, len(n.Mean), len(n.Std))
	}
	return nil
}

// Apply returns (v - mean) / std. A nil normalizer returns a copy of v.
func (n *Normalizer) Apply(v []float64) ([]float64, error) {
	out := make([]float64, len(v))
	if n == nil {
		copy(out, v)
		return out, nil
	}
	if len(v) != len(n.Mean) || len(v) != len(n.Std) {
		return nil, fmt.Errorf("%w: vector has %d values, normalizer expects %d",
			ErrDimensionMismatch, len(v), len(n.Mean))
	}

	for i, x := range v {
		std := n.Std[i]
		if std == 0 {
			std = Epsilon
		}
		out[i] = (x - n.Mean[i]) / std
	}
	return out, nil
}

// ApplyRows normalizes every row with the same per-feature constants.
func (n *Normalizer) ApplyRows(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		normalized, err := n.Apply(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = normalized
	}
	return out, nil
}

// CheckStatic verifies a vector width against a static classifier.
func CheckStatic(c Static, features []float64) error {
	if len(features) != c.InputDim() {
		return fmt.Errorf("%w: static input has %d values, classifier expects %d",
			ErrDimensionMismatch, len(features), c.InputDim())
	}
	return nil
}

// CheckSequence verifies a window shape against a sequence classifier.
func CheckSequence(c Sequence, rows [][]float64) error {
	if len(rows) != c.Timesteps() {
		return fmt.Errorf("%w: sequence has %d rows, classifier expects %d",
			ErrDimensionMismatch, len(rows), c.Timesteps())
	}
	for i, row := range rows {
		if len(row) != c.InputDim() {
			return fmt.Errorf("%w: sequence row %d has %d values, classifier expects %d",
				ErrDimensionMismatch, i, len(row), c.InputDim())
		}
	}
	return nil
}

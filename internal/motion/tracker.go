// Package motion measures per-frame hand motion energy and detects the
// repeated sharp movements that distinguish a tense consonant from its base.
package motion

import (
	"fmt"
	"math"
	"sort"

	"github.com/ayusman/signtalk/internal/landmark"
)

// Position is a cached landmark position from an earlier frame.
type Position struct {
	X float64
	Y float64
}

// Feature is one tracked landmark's position and displacement for a frame.
type Feature struct {
	ID int
	X  float64
	Y  float64
	DX float64
	DY float64
}

// DefaultWeights tracks the wrist and the index fingertip.
func DefaultWeights() map[int]float64 {
	return map[int]float64{
		landmark.Wrist:    0.3,
		landmark.IndexTip: 0.7,
	}
}

// Tracker computes displacement features and a weighted speed sample for a
// fixed set of landmark ids.
type Tracker struct {
	ids     []int
	weights map[int]float64
}

// NewTracker creates a Tracker over the given id→weight map.
// Every weight must be positive and every id a valid landmark id.
func NewTracker(weights map[int]float64) (*Tracker, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("tracker needs at least one tracked landmark")
	}

	t := &Tracker{weights: make(map[int]float64, len(weights))}
	for id, w := range weights {
		if id < 0 || id >= landmark.NumLandmarks {
			return nil, fmt.Errorf("tracked landmark id %d out of range", id)
		}
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("tracked landmark %d has non-positive weight %v", id, w)
		}
		t.ids = append(t.ids, id)
		t.weights[id] = w
	}
	sort.Ints(t.ids)
	return t, nil
}

// IDs returns the tracked ids in ascending order.
func (t *Tracker) IDs() []int {
	out := make([]int, len(t.ids))
	copy(out, t.ids)
	return out
}

// Weight returns the weight of a tracked id, or 0 if it is not tracked.
func (t *Tracker) Weight(id int) float64 {
	return t.weights[id]
}

// Measure computes features for the tracked ids present in frame and the
// frame's speed sample Σ w·(|dx|+|dy|). A tracked id without a cached
// position has zero displacement for this frame. prev is updated in place for
// every tracked id present in the frame; other entries are left untouched.
func (t *Tracker) Measure(frame landmark.Frame, prev map[int]Position) ([]Feature, float64) {
	features := make([]Feature, 0, len(t.ids))
	var speed float64

	for _, id := range t.ids {
		p, ok := frame.Point(id)
		if !ok {
			continue
		}

		f := Feature{ID: id, X: p.X, Y: p.Y}
		if last, seen := prev[id]; seen {
			f.DX = p.X - last.X
			f.DY = p.Y - last.Y
		}
		speed += t.weights[id] * (math.Abs(f.DX) + math.Abs(f.DY))

		prev[id] = Position{X: p.X, Y: p.Y}
		features = append(features, f)
	}

	return features, speed
}

// Vector flattens features into the per-frame sequence row
// [x, y, dx, dy, speed] per tracked id, in tracked id order. Tracked ids
// absent from features contribute a zero block so every row has width
// FeatureWidth·len(IDs).
func (t *Tracker) Vector(features []Feature, speed float64) []float64 {
	row := make([]float64, FeatureWidth*len(t.ids))
	byID := make(map[int]Feature, len(features))
	for _, f := range features {
		byID[f.ID] = f
	}

	for i, id := range t.ids {
		f, ok := byID[id]
		if !ok {
			continue
		}
		base := i * FeatureWidth
		row[base] = f.X
		row[base+1] = f.Y
		row[base+2] = f.DX
		row[base+3] = f.DY
		row[base+4] = speed
	}
	return row
}

// FeatureWidth is the number of sequence values per tracked id.
const FeatureWidth = 5

// RowDim returns the width of a sequence row produced by Vector.
func (t *Tracker) RowDim() int {
	return FeatureWidth * len(t.ids)
}

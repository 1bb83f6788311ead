package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ayusman/signtalk/internal/labels"
)

// Template is a reference feature pattern for one label. Static templates
// carry a single row, sequence templates carry Timesteps rows. Features are
// in normalized space.
type Template struct {
	ID        string       `json:"id"`
	Label     labels.Label `json:"label"`
	Rows      [][]float64  `json:"rows"`
	Tolerance float64      `json:"tolerance"` // 0 means unbounded
}

// Match is a scored template.
type Match struct {
	Template *Template
	Score    float64 // 1/(1+distance), higher is better
	Distance float64
}

// templateSet holds the templates shared by both matchers.
type templateSet struct {
	mu        sync.RWMutex
	templates []*Template
}

func (s *templateSet) add(t *Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, t)
}

func (s *templateSet) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.templates {
		if t.ID == id {
			s.templates = append(s.templates[:i], s.templates[i+1:]...)
			return true
		}
	}
	return false
}

func (s *templateSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// rank scores every template with dist and returns the in-tolerance matches,
// best first.
func (s *templateSet) rank(dist func(*Template) float64) []Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, t := range s.templates {
		d := dist(t)
		if math.IsInf(d, 1) || math.IsNaN(d) {
			continue
		}
		if t.Tolerance > 0 && d > t.Tolerance {
			continue
		}
		matches = append(matches, Match{Template: t, Score: 1.0 / (1.0 + d), Distance: d})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func best(matches []Match) Prediction {
	if len(matches) == 0 {
		return Prediction{Label: labels.None}
	}
	return Prediction{Label: matches[0].Template.Label, Confidence: matches[0].Score}
}

// StaticTemplates classifies a frame vector by its nearest template in
// Euclidean distance.
type StaticTemplates struct {
	dim int
	set templateSet
}

// NewStaticTemplates creates an empty static matcher for vectors of width dim.
func NewStaticTemplates(dim int) *StaticTemplates {
	return &StaticTemplates{dim: dim}
}

// InputDim implements Static.
func (m *StaticTemplates) InputDim() int { return m.dim }

// Len returns the number of registered templates.
func (m *StaticTemplates) Len() int { return m.set.len() }

// AddTemplate registers a single-row template.
func (m *StaticTemplates) AddTemplate(t *Template) error {
	if t == nil {
		return nil
	}
	if len(t.Rows) != 1 || len(t.Rows[0]) != m.dim {
		return fmt.Errorf("%w: static template %q must be one row of %d values",
			ErrDimensionMismatch, t.ID, m.dim)
	}
	m.set.add(t)
	return nil
}

// RemoveTemplate removes a template by its ID.
func (m *StaticTemplates) RemoveTemplate(id string) bool {
	return m.set.remove(id)
}

// Match returns the in-tolerance templates for v, best first.
func (m *StaticTemplates) Match(v []float64) []Match {
	return m.set.rank(func(t *Template) float64 {
		return euclidean(v, t.Rows[0])
	})
}

// Classify implements Static.
func (m *StaticTemplates) Classify(ctx context.Context, features []float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if err := CheckStatic(m, features); err != nil {
		return Prediction{}, err
	}
	return best(m.Match(features)), nil
}

// SequenceTemplates classifies a frame window by its nearest template under
// dynamic time warping.
type SequenceTemplates struct {
	timesteps int
	dim       int
	set       templateSet
}

// NewSequenceTemplates creates an empty sequence matcher for windows of
// timesteps rows of width dim.
func NewSequenceTemplates(timesteps, dim int) *SequenceTemplates {
	return &SequenceTemplates{timesteps: timesteps, dim: dim}
}

// Timesteps implements Sequence.
func (m *SequenceTemplates) Timesteps() int { return m.timesteps }

// InputDim implements Sequence.
func (m *SequenceTemplates) InputDim() int { return m.dim }

// Len returns the number of registered templates.
func (m *SequenceTemplates) Len() int { return m.set.len() }

// AddTemplate registers a template. Rows may differ in count from Timesteps
// but not in width.
func (m *SequenceTemplates) AddTemplate(t *Template) error {
	if t == nil {
		return nil
	}
	if len(t.Rows) == 0 {
		return fmt.Errorf("sequence template %q has no rows", t.ID)
	}
	for i, row := range t.Rows {
		if len(row) != m.dim {
			return fmt.Errorf("%w: sequence template %q row %d has %d values, expected %d",
				ErrDimensionMismatch, t.ID, i, len(row), m.dim)
		}
	}
	m.set.add(t)
	return nil
}

// RemoveTemplate removes a template by its ID.
func (m *SequenceTemplates) RemoveTemplate(id string) bool {
	return m.set.remove(id)
}

// Match returns the in-tolerance templates for rows, best first.
func (m *SequenceTemplates) Match(rows [][]float64) []Match {
	return m.set.rank(func(t *Template) float64 {
		return DTWDistance(rows, t.Rows)
	})
}

// Classify implements Sequence.
func (m *SequenceTemplates) Classify(ctx context.Context, rows [][]float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if err := CheckSequence(m, rows); err != nil {
		return Prediction{}, err
	}
	return best(m.Match(rows)), nil
}

// DTWDistance is the dynamic time warping distance between two row
// sequences, normalized by the longer length. Empty input is infinitely far.
func DTWDistance(a, b [][]float64) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	cost := make([][]float64, n+1)
	for i := range cost {
		cost[i] = make([]float64, m+1)
		for j := range cost[i] {
			cost[i][j] = math.Inf(1)
		}
	}
	cost[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			d := euclidean(a[i-1], b[j-1])
			cost[i][j] = d + min(cost[i-1][j], cost[i][j-1], cost[i-1][j-1])
		}
	}

	return cost[n][m] / float64(max(n, m))
}

// euclidean is the L2 distance over the common prefix of a and b.
func euclidean(a, b []float64) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

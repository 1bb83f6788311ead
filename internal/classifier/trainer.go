package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/signtalk/internal/labels"
)

// StaticSample is a recorded single-frame sample.
type StaticSample struct {
	Label    string    `json:"label"`
	Features []float64 `json:"features"`
}

// SequenceSample is a recorded frame window.
type SequenceSample struct {
	Label  string      `json:"label"`
	Frames [][]float64 `json:"frames"`
}

// Model is a trained template set with its normalization constants.
type Model struct {
	Normalizer *Normalizer
	Templates  []*Template
}

// Trainer turns recorded samples into per-label templates.
type Trainer struct {
	table *labels.Table
}

// NewTrainer creates a Trainer resolving label names through table.
func NewTrainer(table *labels.Table) *Trainer {
	return &Trainer{table: table}
}

// TrainStatic computes normalization constants over all samples and averages
// the normalized samples of each label into one template.
func (t *Trainer) TrainStatic(samples []json.RawMessage) (*Model, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	var (
		vectors [][]float64
		owners  []labels.Label
	)
	for i, raw := range samples {
		var sample StaticSample
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(sample.Features) == 0 {
			return nil, fmt.Errorf("sample %d has no features", i)
		}
		l, err := t.table.Lookup(sample.Label)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		vectors = append(vectors, sample.Features)
		owners = append(owners, l)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: sample %d has %d features, expected %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}

	norm, err := NormalizationStats(vectors)
	if err != nil {
		return nil, err
	}
	normalized, err := norm.ApplyRows(vectors)
	if err != nil {
		return nil, err
	}

	grouped := make(map[labels.Label][][][]float64)
	for i, v := range normalized {
		grouped[owners[i]] = append(grouped[owners[i]], [][]float64{v})
	}
	return &Model{Normalizer: norm, Templates: averageTemplates(grouped)}, nil
}

// TrainSequence fits every sample to timesteps rows, computes per-feature
// normalization constants over the real (unpadded) rows and averages the
// normalized windows of each label into one template.
func (t *Trainer) TrainSequence(samples []json.RawMessage, timesteps int) (*Model, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}
	if timesteps < 1 {
		return nil, fmt.Errorf("timesteps must be positive, got %d", timesteps)
	}

	var (
		windows  [][][]float64
		owners   []labels.Label
		observed [][]float64
		dim      = -1
	)
	for i, raw := range samples {
		var sample SequenceSample
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(sample.Frames) == 0 {
			return nil, fmt.Errorf("sample %d has no frames", i)
		}
		l, err := t.table.Lookup(sample.Label)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		for j, row := range sample.Frames {
			if dim < 0 {
				dim = len(row)
			}
			if len(row) != dim || dim == 0 {
				return nil, fmt.Errorf("%w: sample %d frame %d has %d features, expected %d",
					ErrDimensionMismatch, i, j, len(row), dim)
			}
		}

		window := FitWindow(sample.Frames, timesteps, dim)
		observed = append(observed, window[:min(len(sample.Frames), timesteps)]...)
		windows = append(windows, window)
		owners = append(owners, l)
	}

	norm, err := NormalizationStats(observed)
	if err != nil {
		return nil, err
	}

	grouped := make(map[labels.Label][][][]float64)
	for i, w := range windows {
		normalized, err := norm.ApplyRows(w)
		if err != nil {
			return nil, err
		}
		grouped[owners[i]] = append(grouped[owners[i]], normalized)
	}
	return &Model{Normalizer: norm, Templates: averageTemplates(grouped)}, nil
}

// FitWindow returns exactly timesteps rows of width dim: the newest frames,
// followed by zero rows when there are fewer frames than timesteps.
func FitWindow(frames [][]float64, timesteps, dim int) [][]float64 {
	if len(frames) > timesteps {
		frames = frames[len(frames)-timesteps:]
	}
	out := make([][]float64, timesteps)
	for i := range out {
		out[i] = make([]float64, dim)
		if i < len(frames) {
			copy(out[i], frames[i])
		}
	}
	return out
}

// NormalizationStats computes per-feature population mean and standard
// deviation over rows. Std values include Epsilon.
func NormalizationStats(rows [][]float64) (*Normalizer, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to compute normalization from")
	}

	dim := len(rows[0])
	norm := &Normalizer{Mean: make([]float64, dim), Std: make([]float64, dim)}
	column := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, row := range rows {
			if len(row) != dim {
				return nil, fmt.Errorf("%w: row %d has %d values, expected %d",
					ErrDimensionMismatch, i, len(row), dim)
			}
			column[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		norm.Mean[j] = mean
		norm.Std[j] = math.Sqrt(variance) + Epsilon
	}
	return norm, nil
}

// averageTemplates builds one template per label from its windows, ordered
// by label.
func averageTemplates(grouped map[labels.Label][][][]float64) []*Template {
	owners := make([]labels.Label, 0, len(grouped))
	for l := range grouped {
		owners = append(owners, l)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	templates := make([]*Template, 0, len(owners))
	for _, l := range owners {
		windows := grouped[l]
		n := float64(len(windows))

		rows := make([][]float64, len(windows[0]))
		for r := range rows {
			rows[r] = make([]float64, len(windows[0][r]))
			for _, w := range windows {
				for c, v := range w[r] {
					rows[r][c] += v
				}
			}
			for c := range rows[r] {
				rows[r][c] /= n
			}
		}

		templates = append(templates, &Template{
			ID:    uuid.New().String(),
			Label: l,
			Rows:  rows,
		})
	}
	return templates
}

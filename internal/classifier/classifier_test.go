package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signtalk/internal/labels"
)

func testTable(t *testing.T) *labels.Table {
	t.Helper()
	table, err := labels.NewTable("A", "A2", "B")
	require.NoError(t, err)
	return table
}

func TestNormalizer_Apply(t *testing.T) {
	t.Parallel()

	n := &Normalizer{Mean: []float64{1, 2}, Std: []float64{2, 0}}

	t.Run("standardizes", func(t *testing.T) {
		got, err := n.Apply([]float64{3, 2})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 0}, got)
	})

	t.Run("zero std does not divide by zero", func(t *testing.T) {
		got, err := n.Apply([]float64{1, 2 + Epsilon})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got[1], 1e-6)
		assert.False(t, math.IsInf(got[1], 0))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := n.Apply([]float64{1, 2, 3})
		assert.True(t, errors.Is(err, ErrDimensionMismatch))

		_, err = n.ApplyRows([][]float64{{1, 2}, {1}})
		assert.True(t, errors.Is(err, ErrDimensionMismatch))
	})

	t.Run("nil passes through", func(t *testing.T) {
		var none *Normalizer
		in := []float64{5, 6, 7}
		got, err := none.Apply(in)
		require.NoError(t, err)
		assert.Equal(t, in, got)
		assert.Equal(t, 0, none.Dim())
	})

	t.Run("validate", func(t *testing.T) {
		bad := &Normalizer{Mean: []float64{1}, Std: []float64{1, 2}}
		assert.True(t, errors.Is(bad.Validate(), ErrDimensionMismatch))
		assert.NoError(t, n.Validate())
	})
}

func TestStaticTemplates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewStaticTemplates(2)
	require.NoError(t, m.AddTemplate(&Template{ID: "a", Label: 1, Rows: [][]float64{{0, 0}}}))
	require.NoError(t, m.AddTemplate(&Template{ID: "b", Label: 3, Rows: [][]float64{{3, 4}}, Tolerance: 1}))
	assert.Equal(t, 2, m.Len())

	t.Run("nearest template wins", func(t *testing.T) {
		pred, err := m.Classify(ctx, []float64{3, 4.5})
		require.NoError(t, err)
		assert.Equal(t, labels.Label(3), pred.Label)
		assert.InDelta(t, 1/1.5, pred.Confidence, 1e-9)
	})

	t.Run("tolerance filters far templates", func(t *testing.T) {
		matches := m.Match([]float64{0, 1})
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].Template.ID)
		assert.InDelta(t, 0.5, matches[0].Score, 1e-9)
	})

	t.Run("wrong width", func(t *testing.T) {
		_, err := m.Classify(ctx, []float64{1, 2, 3})
		assert.True(t, errors.Is(err, ErrDimensionMismatch))

		err = m.AddTemplate(&Template{ID: "c", Rows: [][]float64{{1}}})
		assert.True(t, errors.Is(err, ErrDimensionMismatch))
	})

	t.Run("no templates yields none", func(t *testing.T) {
		empty := NewStaticTemplates(2)
		pred, err := empty.Classify(ctx, []float64{0, 0})
		require.NoError(t, err)
		assert.Equal(t, labels.None, pred.Label)
		assert.Equal(t, 0.0, pred.Confidence)
	})

	t.Run("remove", func(t *testing.T) {
		other := NewStaticTemplates(2)
		require.NoError(t, other.AddTemplate(&Template{ID: "x", Label: 1, Rows: [][]float64{{0, 0}}}))
		assert.True(t, other.RemoveTemplate("x"))
		assert.False(t, other.RemoveTemplate("x"))
		assert.Equal(t, 0, other.Len())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := m.Classify(cancelled, []float64{0, 0})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDTWDistance(t *testing.T) {
	t.Parallel()

	a := [][]float64{{0, 0}, {1, 0}, {2, 0}}

	assert.Equal(t, 0.0, DTWDistance(a, a))
	assert.True(t, math.IsInf(DTWDistance(nil, a), 1))

	// Repeating a row is absorbed by the warping path.
	stretched := [][]float64{{0, 0}, {1, 0}, {1, 0}, {2, 0}}
	assert.Equal(t, 0.0, DTWDistance(a, stretched))

	shifted := [][]float64{{0, 1}, {1, 1}, {2, 1}}
	assert.InDelta(t, 1.0, DTWDistance(a, shifted), 1e-9)
}

func TestSequenceTemplates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewSequenceTemplates(3, 1)
	require.NoError(t, m.AddTemplate(&Template{ID: "up", Label: 1, Rows: [][]float64{{0}, {1}, {2}}}))
	require.NoError(t, m.AddTemplate(&Template{ID: "down", Label: 2, Rows: [][]float64{{2}, {1}, {0}}}))

	pred, err := m.Classify(ctx, [][]float64{{0}, {1}, {2.2}})
	require.NoError(t, err)
	assert.Equal(t, labels.Label(1), pred.Label)
	assert.Greater(t, pred.Confidence, 0.9)

	_, err = m.Classify(ctx, [][]float64{{0}, {1}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = m.Classify(ctx, [][]float64{{0}, {1}, {2, 3}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	err = m.AddTemplate(&Template{ID: "bad", Rows: [][]float64{{1, 2}}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func rawSamples(t *testing.T, samples ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		out[i] = b
	}
	return out
}

func TestNormalizationStats(t *testing.T) {
	t.Parallel()

	norm, err := NormalizationStats([][]float64{{1, 5}, {3, 5}})
	require.NoError(t, err)

	want := &Normalizer{Mean: []float64{2, 5}, Std: []float64{1 + Epsilon, Epsilon}}
	if diff := cmp.Diff(want, norm, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("NormalizationStats mismatch (-want +got):\n%s", diff)
	}

	_, err = NormalizationStats(nil)
	assert.Error(t, err)

	_, err = NormalizationStats([][]float64{{1, 2}, {1}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestTrainer_TrainStatic(t *testing.T) {
	t.Parallel()
	table := testTable(t)
	trainer := NewTrainer(table)

	model, err := trainer.TrainStatic(rawSamples(t,
		StaticSample{Label: "A", Features: []float64{0, 0}},
		StaticSample{Label: "A", Features: []float64{0, 2}},
		StaticSample{Label: "B", Features: []float64{4, 2}},
		StaticSample{Label: "B", Features: []float64{4, 4}},
	))
	require.NoError(t, err)
	require.Len(t, model.Templates, 2)
	assert.Equal(t, []float64{2, 2}, model.Normalizer.Mean)

	// Trained templates classify their own samples.
	m := NewStaticTemplates(2)
	for _, tmpl := range model.Templates {
		require.NoError(t, m.AddTemplate(tmpl))
	}
	v, err := model.Normalizer.Apply([]float64{4, 3})
	require.NoError(t, err)
	pred, err := m.Classify(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "B", table.Name(pred.Label))

	t.Run("errors", func(t *testing.T) {
		_, err := trainer.TrainStatic(nil)
		assert.Error(t, err)

		_, err = trainer.TrainStatic([]json.RawMessage{json.RawMessage(`{bad`)})
		assert.Error(t, err)

		_, err = trainer.TrainStatic(rawSamples(t, StaticSample{Label: "Z", Features: []float64{1}}))
		assert.True(t, errors.Is(err, labels.ErrUnknownLabel))

		_, err = trainer.TrainStatic(rawSamples(t,
			StaticSample{Label: "A", Features: []float64{1}},
			StaticSample{Label: "A", Features: []float64{1, 2}},
		))
		assert.True(t, errors.Is(err, ErrDimensionMismatch))
	})
}

func TestTrainer_TrainSequence(t *testing.T) {
	t.Parallel()
	table := testTable(t)
	trainer := NewTrainer(table)

	model, err := trainer.TrainSequence(rawSamples(t,
		SequenceSample{Label: "A2", Frames: [][]float64{{0}, {1}, {2}}},
		SequenceSample{Label: "A2", Frames: [][]float64{{0}, {1}, {2}, {3}, {4}}},
	), 4)
	require.NoError(t, err)
	require.Len(t, model.Templates, 1)
	assert.Len(t, model.Templates[0].Rows, 4)
	assert.Equal(t, "A2", table.Name(model.Templates[0].Label))

	_, err = trainer.TrainSequence(rawSamples(t,
		SequenceSample{Label: "A2", Frames: [][]float64{{0}, {1, 2}}},
	), 4)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = trainer.TrainSequence(rawSamples(t, SequenceSample{Label: "A2"}), 4)
	assert.Error(t, err)
}

func TestFitWindow(t *testing.T) {
	t.Parallel()

	got := FitWindow([][]float64{{1, 1}, {2, 2}}, 3, 2)
	assert.Equal(t, [][]float64{{1, 1}, {2, 2}, {0, 0}}, got)

	got = FitWindow([][]float64{{1}, {2}, {3}}, 2, 1)
	assert.Equal(t, [][]float64{{2}, {3}}, got)
}

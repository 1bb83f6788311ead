package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/labels"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTable(t *testing.T) *labels.Table {
	t.Helper()
	table, err := labels.NewTable("A", "B", "C")
	require.NoError(t, err)
	return table
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

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	assert.Equal(t, dbPath, s.Path())
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"models", "templates", "samples"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q should exist after migrations", table)
	}

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestNewStore_ReopenIsNoChange(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestStore_MigrateDown(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.MigrateDown())
	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	var n int
	require.NoError(t, s.DB().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='models'").Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, s.MigrateUp())
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	// Templates reference a trained model.
	err := s.Templates().Replace(KindSequence, []Template{
		{ID: "t1", Label: "A", Rows: [][]float64{{1}}},
	})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("static")
	require.NoError(t, err)
	assert.Equal(t, KindStatic, k)

	k, err = ParseKind("sequence")
	require.NoError(t, err)
	assert.Equal(t, KindSequence, k)

	_, err = ParseKind("dynamic")
	assert.Error(t, err)
}

func TestModelRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Models()

	_, err := repo.Get(KindStatic)
	assert.True(t, errors.Is(err, ErrNotFound))

	m := &Model{Kind: KindStatic, InputDim: 2, Timesteps: 1, Mean: []float64{1, 2}, Std: []float64{0.5, 1}}
	require.NoError(t, repo.Save(m))
	assert.False(t, m.TrainedAt.IsZero())

	got, err := repo.Get(KindStatic)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got.Mean)
	assert.Equal(t, []float64{0.5, 1}, got.Std)
	assert.Equal(t, 2, got.InputDim)

	// Save replaces.
	m2 := &Model{Kind: KindStatic, InputDim: 1, Timesteps: 1, Mean: []float64{3}, Std: []float64{1}}
	require.NoError(t, repo.Save(m2))
	got, err = repo.Get(KindStatic)
	require.NoError(t, err)
	assert.Equal(t, 1, got.InputDim)

	assert.Error(t, repo.Save(&Model{Kind: KindStatic, InputDim: 3, Mean: []float64{1}, Std: []float64{1}}))

	require.NoError(t, repo.Delete(KindStatic))
	assert.True(t, errors.Is(repo.Delete(KindStatic), ErrNotFound))
}

func TestTemplateRepository(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Models().Save(&Model{
		Kind: KindStatic, InputDim: 2, Timesteps: 1, Mean: []float64{0, 0}, Std: []float64{1, 1},
	}))

	require.NoError(t, s.Templates().Replace(KindStatic, []Template{
		{ID: "t2", Label: "B", Rows: [][]float64{{3, 4}}},
		{ID: "t1", Label: "A", Rows: [][]float64{{1, 2}}, Tolerance: 0.5},
	}))

	got, err := s.Templates().List(KindStatic)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Label)
	assert.Equal(t, 0.5, got[0].Tolerance)
	if diff := cmp.Diff([][]float64{{3, 4}}, got[1].Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.Templates().Replace(KindStatic, []Template{
		{ID: "t3", Label: "C", Rows: [][]float64{{5, 6}}},
	}))
	got, err = s.Templates().List(KindStatic)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t3", got[0].ID)

	// Deleting the model cascades to its templates.
	require.NoError(t, s.Models().Delete(KindStatic))
	got, err = s.Templates().List(KindStatic)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSampleRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Samples()

	require.NoError(t, repo.Create(KindStatic, rawSamples(t,
		classifier.StaticSample{Label: "A", Features: []float64{1, 2}},
		classifier.StaticSample{Label: "A", Features: []float64{1, 3}},
		classifier.StaticSample{Label: "B", Features: []float64{5, 5}},
	)))
	require.NoError(t, repo.Create(KindSequence, rawSamples(t,
		classifier.SequenceSample{Label: "C", Frames: [][]float64{{1}, {2}}},
	)))

	samples, err := repo.List(KindStatic)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, "A", samples[0].Label)
	assert.Equal(t, KindStatic, samples[0].Kind)

	counts, err := repo.CountByLabel(KindStatic)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, counts)

	data, err := repo.Data(KindSequence)
	require.NoError(t, err)
	require.Len(t, data, 1)
	var seq classifier.SequenceSample
	require.NoError(t, json.Unmarshal(data[0], &seq))
	assert.Equal(t, "C", seq.Label)

	t.Run("rejects unlabeled samples atomically", func(t *testing.T) {
		err := repo.Create(KindStatic, []json.RawMessage{
			json.RawMessage(`{"label":"A","features":[0,0]}`),
			json.RawMessage(`{"features":[0,0]}`),
		})
		assert.Error(t, err)

		counts, err := repo.CountByLabel(KindStatic)
		require.NoError(t, err)
		assert.Equal(t, 2, counts["A"])
	})

	n, err := repo.DeleteByKind(KindStatic)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_SaveAndLoadStatic(t *testing.T) {
	s := newTestStore(t)
	table := testTable(t)

	_, _, err := s.LoadStatic(table)
	assert.True(t, errors.Is(err, ErrNotFound))

	model, err := classifier.NewTrainer(table).TrainStatic(rawSamples(t,
		classifier.StaticSample{Label: "A", Features: []float64{0, 0}},
		classifier.StaticSample{Label: "A", Features: []float64{0, 2}},
		classifier.StaticSample{Label: "B", Features: []float64{4, 2}},
		classifier.StaticSample{Label: "B", Features: []float64{4, 4}},
	))
	require.NoError(t, err)
	require.NoError(t, s.SaveModel(KindStatic, 1, model, table))

	c, norm, err := s.LoadStatic(table)
	require.NoError(t, err)
	assert.Equal(t, 2, c.InputDim())
	assert.Equal(t, 2, c.Len())
	if diff := cmp.Diff(model.Normalizer, norm); diff != "" {
		t.Errorf("normalizer mismatch (-want +got):\n%s", diff)
	}

	v, err := norm.Apply([]float64{0, 1})
	require.NoError(t, err)
	pred, err := c.Classify(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "A", table.Name(pred.Label))
}

func TestStore_SaveAndLoadSequence(t *testing.T) {
	s := newTestStore(t)
	table := testTable(t)

	model, err := classifier.NewTrainer(table).TrainSequence(rawSamples(t,
		classifier.SequenceSample{Label: "A", Frames: [][]float64{{0, 0}, {1, 1}, {2, 2}}},
		classifier.SequenceSample{Label: "C", Frames: [][]float64{{5, 0}, {4, 1}, {3, 2}}},
	), 3)
	require.NoError(t, err)
	require.NoError(t, s.SaveModel(KindSequence, 3, model, table))

	c, _, err := s.LoadSequence(table)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Timesteps())
	assert.Equal(t, 2, c.InputDim())
	assert.Equal(t, 2, c.Len())

	t.Run("unknown stored label", func(t *testing.T) {
		other, err := labels.NewTable("X")
		require.NoError(t, err)
		_, _, err = s.LoadSequence(other)
		assert.True(t, errors.Is(err, labels.ErrUnknownLabel))
	})

	t.Run("template label outside table", func(t *testing.T) {
		other, err := labels.NewTable("X")
		require.NoError(t, err)
		assert.Error(t, s.SaveModel(KindSequence, 3, model, other))
	})

	assert.Error(t, s.SaveModel(KindStatic, 1, &classifier.Model{}, table))
}

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Model holds the normalization constants and input shape of one trained
// classifier.
type Model struct {
	Kind      Kind
	InputDim  int
	Timesteps int
	Mean      []float64
	Std       []float64
	TrainedAt time.Time
}

// ModelRepository provides access to trained model metadata.
type ModelRepository struct {
	db *sql.DB
}

// Models returns the model repository for this store.
func (s *Store) Models() *ModelRepository {
	return &ModelRepository{db: s.db}
}

// Save inserts or replaces the model of m.Kind.
func (r *ModelRepository) Save(m *Model) error {
	return saveModel(r.db, m)
}

func saveModel(e execer, m *Model) error {
	if len(m.Mean) != m.InputDim || len(m.Std) != m.InputDim {
		return fmt.Errorf("model %s: mean/std length must equal input dim %d", m.Kind, m.InputDim)
	}
	mean, err := json.Marshal(m.Mean)
	if err != nil {
		return err
	}
	std, err := json.Marshal(m.Std)
	if err != nil {
		return err
	}
	if m.TrainedAt.IsZero() {
		m.TrainedAt = time.Now().UTC()
	}

	_, err = e.Exec(
		`INSERT INTO models (kind, input_dim, timesteps, mean, std, trained_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET
		   input_dim = excluded.input_dim,
		   timesteps = excluded.timesteps,
		   mean = excluded.mean,
		   std = excluded.std,
		   trained_at = excluded.trained_at`,
		string(m.Kind), m.InputDim, m.Timesteps, string(mean), string(std), m.TrainedAt,
	)
	return err
}

// Get retrieves the model of the given kind.
func (r *ModelRepository) Get(kind Kind) (*Model, error) {
	m := &Model{}
	var k, mean, std string

	err := r.db.QueryRow(
		`SELECT kind, input_dim, timesteps, mean, std, trained_at
		 FROM models WHERE kind = ?`,
		string(kind),
	).Scan(&k, &m.InputDim, &m.Timesteps, &mean, &std, &m.TrainedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Kind = Kind(k)
	if err := json.Unmarshal([]byte(mean), &m.Mean); err != nil {
		return nil, fmt.Errorf("model %s mean: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(std), &m.Std); err != nil {
		return nil, fmt.Errorf("model %s std: %w", kind, err)
	}
	return m, nil
}

// Delete removes the model of the given kind together with its templates.
func (r *ModelRepository) Delete(kind Kind) error {
	result, err := r.db.Exec(`DELETE FROM models WHERE kind = ?`, string(kind))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

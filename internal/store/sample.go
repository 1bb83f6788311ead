package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Sample represents a recorded training sample stored in the database.
type Sample struct {
	ID        int64           `json:"id"`
	Kind      Kind            `json:"kind"`
	Label     string          `json:"label"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// SampleRepository provides access to recorded samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts multiple samples in a single transaction. Each sample must
// be a JSON object with a non-empty "label".
func (r *SampleRepository) Create(kind Kind, samples []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO samples (kind, label, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, data := range samples {
		var head struct {
			Label string `json:"label"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if head.Label == "" {
			return fmt.Errorf("sample %d has no label", i)
		}
		if _, err := stmt.Exec(string(kind), head.Label, string(data), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// List retrieves all samples of kind in insertion order.
func (r *SampleRepository) List(kind Kind) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, kind, label, data, created_at
		 FROM samples
		 WHERE kind = ?
		 ORDER BY id`,
		string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var k, data string
		if err := rows.Scan(&s.ID, &k, &s.Label, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Kind = Kind(k)
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Data returns the raw payloads of every sample of kind.
func (r *SampleRepository) Data(kind Kind) ([]json.RawMessage, error) {
	samples, err := r.List(kind)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		out[i] = s.Data
	}
	return out, nil
}

// CountByLabel returns the number of samples of kind per label.
func (r *SampleRepository) CountByLabel(kind Kind) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT label, COUNT(*) FROM samples WHERE kind = ? GROUP BY label`,
		string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// DeleteByKind removes every sample of kind and returns how many were
// deleted.
func (r *SampleRepository) DeleteByKind(kind Kind) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM samples WHERE kind = ?`, string(kind))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

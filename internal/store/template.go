package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Template is a stored reference pattern. Label is the label name so the
// stored templates survive a reordered label table.
type Template struct {
	ID        string
	Kind      Kind
	Label     string
	Rows      [][]float64
	Tolerance float64
	CreatedAt time.Time
}

// TemplateRepository provides access to stored templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// Replace swaps every template of kind for templates in a single
// transaction. The model of kind must exist.
func (r *TemplateRepository) Replace(kind Kind, templates []Template) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := replaceTemplates(tx, kind, templates); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceTemplates(tx *sql.Tx, kind Kind, templates []Template) error {
	if _, err := tx.Exec(`DELETE FROM templates WHERE kind = ?`, string(kind)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO templates (id, kind, label, data, tolerance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range templates {
		t := &templates[i]
		t.Kind = kind
		t.CreatedAt = now
		data, err := json.Marshal(t.Rows)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(t.ID, string(kind), t.Label, string(data), t.Tolerance, t.CreatedAt); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
	}
	return nil
}

// List returns the templates of kind ordered by label.
func (r *TemplateRepository) List(kind Kind) ([]Template, error) {
	rows, err := r.db.Query(
		`SELECT id, kind, label, data, tolerance, created_at
		 FROM templates
		 WHERE kind = ?
		 ORDER BY label, id`,
		string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		var k, data string
		if err := rows.Scan(&t.ID, &k, &t.Label, &data, &t.Tolerance, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = Kind(k)
		if err := json.Unmarshal([]byte(data), &t.Rows); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

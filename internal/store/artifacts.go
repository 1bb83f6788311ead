package store

import (
	"fmt"

	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/labels"
)

// SaveModel stores a trained model of kind and replaces its templates in one
// transaction. timesteps is 1 for static models.
func (s *Store) SaveModel(kind Kind, timesteps int, m *classifier.Model, table *labels.Table) error {
	if m == nil || m.Normalizer == nil {
		return fmt.Errorf("model %s has no normalization constants", kind)
	}
	if err := m.Normalizer.Validate(); err != nil {
		return err
	}

	templates := make([]Template, 0, len(m.Templates))
	for _, t := range m.Templates {
		if !table.Contains(t.Label) {
			return fmt.Errorf("template %s: %w", t.ID, labels.ErrUnknownLabel)
		}
		templates = append(templates, Template{
			ID:        t.ID,
			Label:     table.Name(t.Label),
			Rows:      t.Rows,
			Tolerance: t.Tolerance,
		})
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveModel(tx, &Model{
		Kind:      kind,
		InputDim:  m.Normalizer.Dim(),
		Timesteps: timesteps,
		Mean:      m.Normalizer.Mean,
		Std:       m.Normalizer.Std,
	}); err != nil {
		return err
	}
	if err := replaceTemplates(tx, kind, templates); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadStatic builds the static template classifier and its normalizer.
// It returns ErrNotFound when no static model was trained.
func (s *Store) LoadStatic(table *labels.Table) (*classifier.StaticTemplates, *classifier.Normalizer, error) {
	model, templates, err := s.load(KindStatic, table)
	if err != nil {
		return nil, nil, err
	}
	c := classifier.NewStaticTemplates(model.InputDim)
	for _, t := range templates {
		if err := c.AddTemplate(t); err != nil {
			return nil, nil, err
		}
	}
	return c, &classifier.Normalizer{Mean: model.Mean, Std: model.Std}, nil
}

// LoadSequence builds the sequence template classifier and its normalizer.
// It returns ErrNotFound when no sequence model was trained.
func (s *Store) LoadSequence(table *labels.Table) (*classifier.SequenceTemplates, *classifier.Normalizer, error) {
	model, templates, err := s.load(KindSequence, table)
	if err != nil {
		return nil, nil, err
	}
	c := classifier.NewSequenceTemplates(model.Timesteps, model.InputDim)
	for _, t := range templates {
		if err := c.AddTemplate(t); err != nil {
			return nil, nil, err
		}
	}
	return c, &classifier.Normalizer{Mean: model.Mean, Std: model.Std}, nil
}

func (s *Store) load(kind Kind, table *labels.Table) (*Model, []*classifier.Template, error) {
	model, err := s.Models().Get(kind)
	if err != nil {
		return nil, nil, fmt.Errorf("%s model: %w", kind, err)
	}
	stored, err := s.Templates().List(kind)
	if err != nil {
		return nil, nil, err
	}

	templates := make([]*classifier.Template, 0, len(stored))
	for _, t := range stored {
		l, err := table.Lookup(t.Label)
		if err != nil {
			return nil, nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		templates = append(templates, &classifier.Template{
			ID:        t.ID,
			Label:     l,
			Rows:      t.Rows,
			Tolerance: t.Tolerance,
		})
	}
	return model, templates, nil
}

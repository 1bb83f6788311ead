package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/landmark"
	"github.com/ayusman/signtalk/internal/store"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		kindName string
		reset    bool
	)

	cmd := &cobra.Command{
		Use:   "train --kind static|sequence samples.json...",
		Short: "Record training samples and rebuild the template classifier",
		Long: `Train appends the samples of each JSON array file to the store and
retrains every template of the kind from all stored samples.

Static samples are {"label":"ㄱ","features":[x0,y0,...]} with one (x, y) pair
per landmark. Sequence samples are {"label":"ㄲ","frames":[[...],...]} with
one motion row per frame.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := store.ParseKind(kindName)
			if err != nil {
				return err
			}

			var samples []json.RawMessage
			for _, path := range args {
				batch, err := readSamples(path)
				if err != nil {
					return err
				}
				samples = append(samples, batch...)
			}

			st, err := store.New(a.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			t := &trainer{app: a, store: st}
			counts, err := t.train(kind, samples, reset)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s\t%d\n", name, counts[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", string(store.KindStatic), "classifier to train: static or sequence")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard previously stored samples of the kind first")
	return cmd
}

type trainer struct {
	app   *app
	store *store.Store
}

// train stores samples, retrains kind from every stored sample and returns
// the per-label sample counts.
func (t *trainer) train(kind store.Kind, samples []json.RawMessage, reset bool) (map[string]int, error) {
	set, err := t.app.cfg.LabelSet()
	if err != nil {
		return nil, err
	}
	tracker, err := t.app.cfg.Tracker()
	if err != nil {
		return nil, err
	}

	repo := t.store.Samples()
	var all []json.RawMessage
	if !reset {
		if all, err = repo.Data(kind); err != nil {
			return nil, err
		}
	}
	all = append(all, samples...)
	if len(all) == 0 {
		return nil, fmt.Errorf("no %s samples stored or provided", kind)
	}

	tr := classifier.NewTrainer(set.Table)
	var (
		model     *classifier.Model
		timesteps = 1
		wantDim   int
	)
	switch kind {
	case store.KindStatic:
		model, err = tr.TrainStatic(all)
		wantDim = 2 * landmark.NumLandmarks
	case store.KindSequence:
		timesteps = t.app.cfg.Window.Frames
		model, err = tr.TrainSequence(all, timesteps)
		wantDim = tracker.RowDim()
	}
	if err != nil {
		return nil, err
	}
	if dim := model.Normalizer.Dim(); dim != wantDim {
		return nil, fmt.Errorf("%w: %s samples have %d features, the engine produces %d",
			classifier.ErrDimensionMismatch, kind, dim, wantDim)
	}

	// Samples are only stored once they train a usable model.
	if reset {
		n, err := repo.DeleteByKind(kind)
		if err != nil {
			return nil, err
		}
		t.app.log.WithFields(logrus.Fields{"kind": kind, "deleted": n}).Info("reset samples")
	}
	if len(samples) > 0 {
		if err := repo.Create(kind, samples); err != nil {
			return nil, fmt.Errorf("store samples: %w", err)
		}
	}
	if err := t.store.SaveModel(kind, timesteps, model, set.Table); err != nil {
		return nil, err
	}
	t.app.log.WithFields(logrus.Fields{
		"kind":      kind,
		"samples":   len(all),
		"templates": len(model.Templates),
	}).Info("model trained")

	return repo.CountByLabel(kind)
}

// readSamples reads a JSON array of samples.
func readSamples(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var samples []json.RawMessage
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

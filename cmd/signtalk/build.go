package main

import (
	"errors"
	"fmt"

	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/engine"
	"github.com/ayusman/signtalk/internal/landmark"
	"github.com/ayusman/signtalk/internal/store"
)

// runtime is a built engine plus the resources backing it.
type runtime struct {
	engine *engine.Engine
	store  *store.Store
	proc   *classifier.Process
}

func (r *runtime) Close() error {
	var errs []error
	if r.proc != nil {
		errs = append(errs, r.proc.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// buildEngine opens the artifact store and assembles the engine. Classifiers
// come from the configured model server when one is set, otherwise from the
// stored templates.
func (a *app) buildEngine() (*runtime, error) {
	set, err := a.cfg.LabelSet()
	if err != nil {
		return nil, err
	}
	tracker, err := a.cfg.Tracker()
	if err != nil {
		return nil, err
	}
	params := a.cfg.EngineParams()

	st, err := store.New(a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	rt := &runtime{store: st}

	opts := engine.Options{
		Labels:  set,
		Tracker: tracker,
		Params:  params,
		Logger:  a.log,
	}

	staticT, staticN, err := st.LoadStatic(set.Table)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		rt.Close()
		return nil, err
	}
	sequenceT, sequenceN, err := st.LoadSequence(set.Table)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		rt.Close()
		return nil, err
	}
	opts.StaticNorm = staticN
	opts.SequenceNorm = sequenceN

	if len(a.cfg.ModelServer.Command) > 0 {
		proc, err := classifier.NewProcess(classifier.ProcessConfig{
			Command:     a.cfg.ModelServer.Command,
			IdleTimeout: a.cfg.ModelServer.IdleTimeout,
			StaticDim:   2 * landmark.NumLandmarks,
			Timesteps:   params.WindowFrames,
			SequenceDim: tracker.RowDim(),
		}, set.Table)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.proc = proc
		opts.Static = proc.Static()
		opts.Sequence = proc.Sequence()
		a.log.WithField("command", a.cfg.ModelServer.Command).Info("using model server")
	} else {
		if staticT != nil {
			opts.Static = staticT
		}
		if sequenceT != nil {
			opts.Sequence = sequenceT
		}
	}
	if opts.Static == nil && opts.Sequence == nil {
		rt.Close()
		return nil, fmt.Errorf("no classifier available in %s: run signtalk train or set model_server.command", st.Path())
	}

	eng, err := engine.New(opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.engine = eng
	return rt, nil
}

// Package engine is the hybrid sign recognition decision engine. It routes
// each frame to the static or the sequence classifier depending on the
// session's target label, smooths static outputs, promotes base labels to
// compound labels when repeated motion corroborates them and debounces the
// displayed result.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/decision"
	"github.com/ayusman/signtalk/internal/labels"
	"github.com/ayusman/signtalk/internal/landmark"
	"github.com/ayusman/signtalk/internal/monitoring"
	"github.com/ayusman/signtalk/internal/motion"
	"github.com/ayusman/signtalk/internal/session"
)

// ErrNoClassifier is returned when a frame needs a path with no classifier.
var ErrNoClassifier = errors.New("no classifier for recognition path")

// Params tunes the engine.
type Params struct {
	// WindowFrames is the frame buffer capacity and sequence length.
	WindowFrames int
	// MinFill is the buffer fraction needed before the sequence path
	// classifies.
	MinFill float64
	// VoteWindow is the number of static outputs kept for the majority vote.
	VoteWindow int
	Peaks      motion.PeakParams
	// BaseMajorityMin and MinPeaks gate promotions.
	BaseMajorityMin float64
	MinPeaks        int
	// HoldFrames is how long a recognized label stays displayed.
	HoldFrames int
	// StaticMinConfidence and SequenceMinConfidence withhold weak labels.
	StaticMinConfidence   float64
	SequenceMinConfidence float64
	// SuccessConfidence counts a recognition as successful in summaries.
	SuccessConfidence float64
}

// DefaultParams returns the default engine parameters.
func DefaultParams() Params {
	return Params{
		WindowFrames:          16,
		MinFill:               0.5,
		VoteWindow:            decision.DefaultVoteWindow,
		Peaks:                 motion.DefaultPeakParams(),
		BaseMajorityMin:       decision.DefaultBaseMajorityMin,
		MinPeaks:              decision.DefaultMinPeaks,
		HoldFrames:            decision.DefaultHoldFrames,
		StaticMinConfidence:   0.6,
		SequenceMinConfidence: 0.5,
		SuccessConfidence:     0.7,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	switch {
	case p.WindowFrames < 1:
		return fmt.Errorf("window frames must be positive, got %d", p.WindowFrames)
	case p.MinFill <= 0 || p.MinFill > 1:
		return fmt.Errorf("min fill must be in (0, 1], got %v", p.MinFill)
	case p.VoteWindow < 1:
		return fmt.Errorf("vote window must be positive, got %d", p.VoteWindow)
	case p.Peaks.MinGap < 1 || p.Peaks.MaxGap < p.Peaks.MinGap:
		return fmt.Errorf("peak gaps must satisfy 1 <= min_gap <= max_gap, got %d and %d",
			p.Peaks.MinGap, p.Peaks.MaxGap)
	case p.BaseMajorityMin < 0 || p.BaseMajorityMin > 1:
		return fmt.Errorf("base majority min must be in [0, 1], got %v", p.BaseMajorityMin)
	case p.MinPeaks < 0:
		return fmt.Errorf("min peaks must not be negative, got %d", p.MinPeaks)
	case p.HoldFrames < 0:
		return fmt.Errorf("hold frames must not be negative, got %d", p.HoldFrames)
	}
	return nil
}

// MinFrames is the number of buffered frames the sequence path needs.
func (p Params) MinFrames() int {
	n := int(float64(p.WindowFrames) * p.MinFill)
	return max(n, 1)
}

// Options configures an Engine. Labels is required; at least one classifier
// should be set.
type Options struct {
	Labels *labels.Set

	Static     classifier.Static
	StaticNorm *classifier.Normalizer

	Sequence     classifier.Sequence
	SequenceNorm *classifier.Normalizer

	// Tracker defaults to the wrist and index fingertip.
	Tracker *motion.Tracker
	Params  Params
	// Sessions defaults to an in-memory MapStore.
	Sessions session.Store
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Engine processes landmark frames for many concurrent sessions.
type Engine struct {
	labels    *labels.Set
	static    classifier.Static
	staticN   *classifier.Normalizer
	sequence  classifier.Sequence
	sequenceN *classifier.Normalizer
	tracker   *motion.Tracker
	params    Params
	policy    decision.Policy
	sessions  session.Store
	log       logrus.FieldLogger
	now       func() time.Time
}

// New validates opts and creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Labels == nil || opts.Labels.Table == nil {
		return nil, fmt.Errorf("engine needs a label set")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("engine params: %w", err)
	}

	tracker := opts.Tracker
	if tracker == nil {
		var err error
		if tracker, err = motion.NewTracker(motion.DefaultWeights()); err != nil {
			return nil, err
		}
	}

	if opts.Static != nil {
		if err := checkNormalizer(opts.StaticNorm, opts.Static.InputDim(), "static"); err != nil {
			return nil, err
		}
	}
	if opts.Sequence != nil {
		if opts.Sequence.Timesteps() != opts.Params.WindowFrames {
			return nil, fmt.Errorf("%w: sequence classifier expects %d timesteps, window holds %d frames",
				classifier.ErrDimensionMismatch, opts.Sequence.Timesteps(), opts.Params.WindowFrames)
		}
		if opts.Sequence.InputDim() != tracker.RowDim() {
			return nil, fmt.Errorf("%w: sequence classifier expects %d features per frame, tracker produces %d",
				classifier.ErrDimensionMismatch, opts.Sequence.InputDim(), tracker.RowDim())
		}
		if err := checkNormalizer(opts.SequenceNorm, opts.Sequence.InputDim(), "sequence"); err != nil {
			return nil, err
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewMapStore(session.Options{
			WindowFrames:      opts.Params.WindowFrames,
			VoteWindow:        opts.Params.VoteWindow,
			HoldFrames:        opts.Params.HoldFrames,
			SuccessConfidence: opts.Params.SuccessConfidence,
		}, now)
	}
	log := opts.Logger
	if log == nil {
		log = monitoring.Discard()
	}

	return &Engine{
		labels:    opts.Labels,
		static:    opts.Static,
		staticN:   opts.StaticNorm,
		sequence:  opts.Sequence,
		sequenceN: opts.SequenceNorm,
		tracker:   tracker,
		params:    opts.Params,
		policy: decision.Policy{
			Promotions:      opts.Labels.Promotions,
			BaseMajorityMin: opts.Params.BaseMajorityMin,
			MinPeaks:        opts.Params.MinPeaks,
		},
		sessions: sessions,
		log:      log,
		now:      now,
	}, nil
}

func checkNormalizer(n *classifier.Normalizer, dim int, path string) error {
	if n == nil {
		return nil
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%s normalizer: %w", path, err)
	}
	if n.Dim() != dim {
		return fmt.Errorf("%w: %s normalizer has %d features, classifier expects %d",
			classifier.ErrDimensionMismatch, path, n.Dim(), dim)
	}
	return nil
}

// Labels returns the engine's label set.
func (e *Engine) Labels() *labels.Set {
	return e.labels
}

// Params returns the engine parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Start opens a new session and returns its generated id.
func (e *Engine) Start(userID string) (string, error) {
	id := uuid.NewString()
	if _, err := e.sessions.Create(id, userID); err != nil {
		return "", err
	}
	e.log.WithFields(logrus.Fields{"session": id, "user": userID}).Info("session started")
	return id, nil
}

// End closes a session and returns its statistics.
func (e *Engine) End(id string) (session.Summary, error) {
	var sum session.Summary
	err := e.sessions.Delete(id, func(s *session.Session) error {
		sum = s.Summary(e.now())
		return nil
	})
	if err != nil {
		return session.Summary{}, err
	}
	e.log.WithFields(logrus.Fields{
		"session":      id,
		"attempts":     sum.Attempts,
		"success_rate": sum.SuccessRate,
	}).Info("session ended")
	return sum, nil
}

// Sweep ends sessions idle for longer than maxIdle.
func (e *Engine) Sweep(maxIdle time.Duration) []string {
	removed := e.sessions.Sweep(maxIdle)
	if len(removed) > 0 {
		e.log.WithField("sessions", len(removed)).Info("swept idle sessions")
	}
	return removed
}

// Sessions returns the number of live sessions.
func (e *Engine) Sessions() int {
	return e.sessions.Len()
}

// Request builds a Request from a target label name.
func (e *Engine) Request(sessionID, target string, frame landmark.Frame) (Request, error) {
	l, err := e.labels.Table.Lookup(target)
	if err != nil {
		return Request{}, err
	}
	return Request{SessionID: sessionID, Target: l, Frame: frame}, nil
}

// logger returns a logger scoped to a session and target.
func (e *Engine) logger(id string, target labels.Label) logrus.FieldLogger {
	return e.log.WithFields(logrus.Fields{
		"session": id,
		"target":  e.labels.Table.Name(target),
	})
}

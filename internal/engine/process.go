package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/labels"
	"github.com/ayusman/signtalk/internal/landmark"
	"github.com/ayusman/signtalk/internal/session"
)

// Status is the outcome of processing one frame.
type Status string

// Frame statuses.
const (
	StatusOK          Status = "ok"
	StatusCollecting  Status = "collecting"
	StatusNoHand      Status = "no_hand"
	StatusUncertain   Status = "uncertain"
	StatusNoDetection Status = "no_detection"
)

// Request is one frame for a session.
type Request struct {
	SessionID string
	Target    labels.Label
	Frame     landmark.Frame
}

// Progress reports how full the sequence window is while collecting.
type Progress struct {
	Have int `json:"have"`
	Need int `json:"need"`
}

// Result is the per-frame result record.
type Result struct {
	Target       labels.Label `json:"target"`
	Predicted    labels.Label `json:"predicted"`
	Confidence   float64      `json:"confidence"`
	HandDetected bool         `json:"hand_detected"`
	Status       Status       `json:"status"`
	Progress     *Progress    `json:"progress,omitempty"`
	// Display is the label currently shown, pinned while a recognition is
	// being held.
	Display labels.Label `json:"display"`
}

// Process runs one frame through the session's recognition path. Low
// confidence, missing hands and partial windows are reported in the result
// status; only contract violations are returned as errors.
func (e *Engine) Process(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !e.labels.Table.Contains(req.Target) {
		return Result{}, fmt.Errorf("target %d: %w", req.Target, labels.ErrUnknownLabel)
	}

	sequencePath := e.labels.Sequence.Contains(req.Target)
	if sequencePath && e.sequence == nil {
		return Result{}, fmt.Errorf("%w: sequence target %q", ErrNoClassifier, e.labels.Table.Name(req.Target))
	}
	if !sequencePath && e.static == nil {
		return Result{}, fmt.Errorf("%w: static target %q", ErrNoClassifier, e.labels.Table.Name(req.Target))
	}

	var res Result
	err := e.sessions.Upsert(req.SessionID, func(s *session.Session) error {
		var err error
		res, err = e.process(ctx, s, req, sequencePath)
		return err
	})
	return res, err
}

func (e *Engine) process(ctx context.Context, s *session.Session, req Request, sequencePath bool) (Result, error) {
	log := e.logger(s.ID, req.Target)
	s.Frames++

	if s.SetTarget(req.Target) {
		log.Debug("target changed, window cleared")
	}

	res := Result{Target: req.Target, HandDetected: req.Frame.HandDetected()}

	if !res.HandDetected {
		if sequencePath {
			s.ResetMotion()
		}
		res.Status = StatusNoHand
		e.show(s, &res, true)
		log.WithField("status", res.Status).Debug("processed frame")
		return res, nil
	}

	features, speed := e.tracker.Measure(req.Frame, s.Prev)
	s.Buffer.Push(session.Sample{Row: e.tracker.Vector(features, speed), Speed: speed})

	var (
		pred      classifier.Prediction
		threshold float64
		err       error
	)
	if sequencePath {
		need := e.params.MinFrames()
		if have := s.Buffer.Len(); have < need {
			res.Status = StatusCollecting
			res.Progress = &Progress{Have: have, Need: need}
			e.show(s, &res, false)
			log.WithFields(logrus.Fields{"status": res.Status, "have": have, "need": need}).Debug("processed frame")
			return res, nil
		}
		pred, err = e.classifySequence(ctx, s)
		threshold = e.params.SequenceMinConfidence
	} else {
		pred, err = e.classifyStatic(ctx, req.Frame)
		threshold = e.params.StaticMinConfidence
	}
	if err != nil {
		log.WithError(err).Error("classification failed")
		return Result{}, err
	}

	res.Confidence = pred.Confidence
	if pred.Label == labels.None || pred.Confidence < threshold {
		res.Status = StatusUncertain
	} else {
		res.Status = StatusOK
		res.Predicted = pred.Label
		s.Last = pred
		if !sequencePath {
			s.Votes.Push(pred.Label)
		}
	}

	e.show(s, &res, true)
	log.WithFields(logrus.Fields{
		"status":     res.Status,
		"predicted":  e.labels.Table.Name(res.Predicted),
		"confidence": res.Confidence,
	}).Debug("processed frame")
	return res, nil
}

// show offers the frame's label to the display when offer is set, advances
// the display hold by one frame and copies the displayed label into res.
func (e *Engine) show(s *session.Session, res *Result, offer bool) {
	if offer {
		s.Display.Offer(res.Predicted)
	}
	s.Display.Tick()
	res.Display = s.Display.Label()
}

func (e *Engine) classifyStatic(ctx context.Context, frame landmark.Frame) (classifier.Prediction, error) {
	features, err := e.staticN.Apply(frame.Coords())
	if err != nil {
		return classifier.Prediction{}, fmt.Errorf("static features: %w", err)
	}
	if err := classifier.CheckStatic(e.static, features); err != nil {
		return classifier.Prediction{}, err
	}
	pred, err := e.static.Classify(ctx, features)
	if err != nil {
		return classifier.Prediction{}, fmt.Errorf("static classifier: %w", err)
	}
	return pred, nil
}

func (e *Engine) classifySequence(ctx context.Context, s *session.Session) (classifier.Prediction, error) {
	window := classifier.FitWindow(s.Rows(), e.params.WindowFrames, e.tracker.RowDim())
	rows, err := e.sequenceN.ApplyRows(window)
	if err != nil {
		return classifier.Prediction{}, fmt.Errorf("sequence features: %w", err)
	}
	if err := classifier.CheckSequence(e.sequence, rows); err != nil {
		return classifier.Prediction{}, err
	}
	pred, err := e.sequence.Classify(ctx, rows)
	if err != nil {
		return classifier.Prediction{}, fmt.Errorf("sequence classifier: %w", err)
	}
	return pred, nil
}

package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/decision"
	"github.com/ayusman/signtalk/internal/labels"
	"github.com/ayusman/signtalk/internal/motion"
	"github.com/ayusman/signtalk/internal/session"
)

// Decision is the result of a triggered recognition.
type Decision struct {
	Outcome decision.Outcome `json:"outcome"`
	// Confidence is the sequence classifier confidence on the sequence path
	// and the majority share on the static path.
	Confidence float64      `json:"confidence"`
	Status     Status       `json:"status"`
	Display    labels.Label `json:"display"`
}

// Recognize commits the session's current evidence to a final label, pins it
// to the display, appends it to the transcript and resets the window for the
// next attempt.
//
// For a sequence target the final label is the last confident sequence
// prediction. Otherwise the majority static label is promoted when the
// buffered speeds show enough distinct motion peaks.
func (e *Engine) Recognize(ctx context.Context, sessionID string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	var d Decision
	err := e.sessions.Do(sessionID, func(s *session.Session) error {
		d = e.recognize(s)
		return nil
	})
	return d, err
}

func (e *Engine) recognize(s *session.Session) Decision {
	var d Decision
	peaks := motion.DetectPeaks(s.Speeds(), e.params.Peaks)

	if e.labels.Sequence.Contains(s.Target) {
		d.Outcome = decision.Outcome{
			Final:    s.Last.Label,
			Base:     s.Last.Label,
			Peaks:    peaks.Count,
			Fraction: 1,
		}
		if s.Last.Label == labels.None {
			d.Outcome.Fraction = 0
		}
		d.Confidence = s.Last.Confidence
	} else {
		base, fraction := s.Votes.Majority()
		d.Outcome = e.policy.Decide(base, fraction, peaks.Count)
		d.Confidence = fraction
	}

	s.Display.Start(d.Outcome.Final)
	s.ResetWindow()
	s.Last = classifier.Prediction{}

	d.Status = StatusOK
	if d.Outcome.Final == labels.None {
		d.Status = StatusNoDetection
		d.Confidence = 0
	} else {
		s.Transcript.Append(d.Outcome.Final)
	}
	s.Record(d.Outcome.Final, d.Confidence, e.now())
	d.Display = s.Display.Label()

	log := e.logger(s.ID, s.Target).WithFields(logrus.Fields{
		"final":    e.labels.Table.Name(d.Outcome.Final),
		"fraction": d.Outcome.Fraction,
		"peaks":    d.Outcome.Peaks,
	})
	if d.Outcome.Promoted {
		log.WithField("base", e.labels.Table.Name(d.Outcome.Base)).Info("promoted recognition")
	} else {
		log.WithField("status", d.Status).Info("recognition")
	}
	return d
}

// Backspace removes the last label from the session transcript.
func (e *Engine) Backspace(sessionID string) (labels.Label, bool, error) {
	var (
		l  labels.Label
		ok bool
	)
	err := e.sessions.Do(sessionID, func(s *session.Session) error {
		l, ok = s.Transcript.Backspace()
		return nil
	})
	return l, ok, err
}

// ClearTranscript empties the session transcript.
func (e *Engine) ClearTranscript(sessionID string) error {
	return e.sessions.Do(sessionID, func(s *session.Session) error {
		s.Transcript.Clear()
		return nil
	})
}

// Transcript returns the session's committed labels in order.
func (e *Engine) Transcript(sessionID string) ([]labels.Label, error) {
	var out []labels.Label
	err := e.sessions.Do(sessionID, func(s *session.Session) error {
		out = s.Transcript.Labels()
		return nil
	})
	return out, err
}

// TranscriptText renders the session transcript as label names.
func (e *Engine) TranscriptText(sessionID string) (string, error) {
	var out string
	err := e.sessions.Do(sessionID, func(s *session.Session) error {
		out = s.Transcript.String(e.labels.Table)
		return nil
	})
	return out, err
}

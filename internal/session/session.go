// Package session holds the per-stream recognition state and the keyed store
// that serializes access to it.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/signtalk/internal/buffer"
	"github.com/ayusman/signtalk/internal/classifier"
	"github.com/ayusman/signtalk/internal/decision"
	"github.com/ayusman/signtalk/internal/labels"
	"github.com/ayusman/signtalk/internal/motion"
	"github.com/ayusman/signtalk/internal/transcript"
)

// recentRecognitions is how many recognitions a Summary reports.
const recentRecognitions = 10

// Options sizes the state of new sessions.
type Options struct {
	WindowFrames      int
	VoteWindow        int
	HoldFrames        int
	SuccessConfidence float64
}

// DefaultOptions returns the default session sizing.
func DefaultOptions() Options {
	return Options{
		WindowFrames:      16,
		VoteWindow:        decision.DefaultVoteWindow,
		HoldFrames:        decision.DefaultHoldFrames,
		SuccessConfidence: 0.7,
	}
}

// Sample is one buffered frame: its sequence row and its speed.
type Sample struct {
	Row   []float64
	Speed float64
}

// Recognition is one committed recognition.
type Recognition struct {
	Label      labels.Label `json:"label"`
	Confidence float64      `json:"confidence"`
	At         time.Time    `json:"at"`
}

// Summary reports the statistics of a session.
type Summary struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id,omitempty"`
	Duration          time.Duration `json:"duration"`
	Frames            uint64        `json:"frames"`
	Attempts          int           `json:"attempts"`
	Successful        int           `json:"successful"`
	SuccessRate       float64       `json:"success_rate"`
	AverageConfidence float64       `json:"average_confidence"`
	Recent            []Recognition `json:"recent"`
}

// Session is the state of one recognition stream. Fields are only touched
// while the session is held through Store.Do.
type Session struct {
	mu sync.Mutex
	// seen is the arrival time of the latest request in unix nanoseconds. It
	// is written before the session lock is taken so Sweep can read it
	// without waiting on a busy session.
	seen atomic.Int64

	ID     string
	UserID string

	// Target is the label the caller is currently signing toward.
	Target labels.Label

	Buffer  *buffer.Ring[Sample]
	Prev    map[int]motion.Position
	Votes   *decision.Votes
	Display *decision.Hold

	// Last is the most recent confident prediction.
	Last classifier.Prediction

	Transcript transcript.Stream

	Frames    uint64
	StartedAt time.Time
	LastSeen  time.Time

	successConfidence float64
	attempts          int
	successful        int
	confidenceSum     float64
	recent            *buffer.Ring[Recognition]
}

// New creates a session sized by opts.
func New(id, userID string, opts Options, now time.Time) *Session {
	s := &Session{
		ID:                id,
		UserID:            userID,
		Buffer:            buffer.New[Sample](opts.WindowFrames),
		Prev:              make(map[int]motion.Position),
		Votes:             decision.NewVotes(opts.VoteWindow),
		Display:           decision.NewHold(opts.HoldFrames),
		StartedAt:         now,
		LastSeen:          now,
		successConfidence: opts.SuccessConfidence,
		recent:            buffer.New[Recognition](recentRecognitions),
	}
	s.touch(now)
	return s
}

func (s *Session) touch(now time.Time) {
	s.seen.Store(now.UnixNano())
}

func (s *Session) idleSince(cutoff time.Time) bool {
	return s.seen.Load() < cutoff.UnixNano()
}

// SetTarget switches the target label. A change drops the buffered window,
// the position cache and the vote history, and reports true.
func (s *Session) SetTarget(l labels.Label) bool {
	if s.Target == l {
		return false
	}
	s.Target = l
	s.ResetWindow()
	return true
}

// ResetMotion drops the buffered frames and the position cache.
func (s *Session) ResetMotion() {
	s.Buffer.Clear()
	clear(s.Prev)
}

// ResetWindow drops the buffered frames, the position cache and the votes.
func (s *Session) ResetWindow() {
	s.ResetMotion()
	s.Votes.Clear()
}

// Speeds returns the buffered speed samples, oldest first.
func (s *Session) Speeds() []float64 {
	samples := s.Buffer.Snapshot()
	out := make([]float64, len(samples))
	for i, sample := range samples {
		out[i] = sample.Speed
	}
	return out
}

// Rows returns the buffered sequence rows, oldest first.
func (s *Session) Rows() [][]float64 {
	samples := s.Buffer.Snapshot()
	out := make([][]float64, len(samples))
	for i, sample := range samples {
		out[i] = sample.Row
	}
	return out
}

// Record counts a committed recognition.
func (s *Session) Record(l labels.Label, confidence float64, at time.Time) {
	s.attempts++
	if confidence >= s.successConfidence {
		s.successful++
	}
	s.confidenceSum += confidence
	s.recent.Push(Recognition{Label: l, Confidence: confidence, At: at})
}

// Summary reports the session statistics as of now.
func (s *Session) Summary(now time.Time) Summary {
	sum := Summary{
		ID:         s.ID,
		UserID:     s.UserID,
		Duration:   now.Sub(s.StartedAt),
		Frames:     s.Frames,
		Attempts:   s.attempts,
		Successful: s.successful,
		Recent:     s.recent.Snapshot(),
	}
	if s.attempts > 0 {
		sum.SuccessRate = float64(s.successful) / float64(s.attempts)
		sum.AverageConfidence = s.confidenceSum / float64(s.attempts)
	}
	return sum
}

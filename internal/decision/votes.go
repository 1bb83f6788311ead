// Package decision turns per-frame classifier outputs into committed labels:
// majority smoothing over recent static outputs, the motion-gated promotion
// of base labels to compound labels, and the display hold after a commit.
package decision

import (
	"github.com/ayusman/signtalk/internal/buffer"
	"github.com/ayusman/signtalk/internal/labels"
)

// DefaultVoteWindow is the default number of votes kept per session.
const DefaultVoteWindow = 14

// Votes is a bounded history of recent static labels.
type Votes struct {
	ring *buffer.Ring[labels.Label]
}

// NewVotes creates a vote history holding at most window labels.
func NewVotes(window int) *Votes {
	return &Votes{ring: buffer.New[labels.Label](window)}
}

// Push records a vote, evicting the oldest one when the window is full.
func (v *Votes) Push(l labels.Label) {
	v.ring.Push(l)
}

// Clear drops every vote.
func (v *Votes) Clear() {
	v.ring.Clear()
}

// Len returns the number of recorded votes.
func (v *Votes) Len() int {
	return v.ring.Len()
}

// Window returns the history capacity.
func (v *Votes) Window() int {
	return v.ring.Cap()
}

// Snapshot returns the votes, oldest first.
func (v *Votes) Snapshot() []labels.Label {
	return v.ring.Snapshot()
}

// Majority returns the most frequent label and its share of the history.
func (v *Votes) Majority() (labels.Label, float64) {
	return Majority(v.ring.Snapshot())
}

// Majority returns the most frequent label in history and its fraction.
// Ties go to the label that occurs first. An empty history yields
// (labels.None, 0).
func Majority(history []labels.Label) (labels.Label, float64) {
	if len(history) == 0 {
		return labels.None, 0
	}

	counts := make(map[labels.Label]int, len(history))
	for _, l := range history {
		counts[l]++
	}

	best, bestCount := labels.None, 0
	for _, l := range history {
		if c := counts[l]; c > bestCount {
			best, bestCount = l, c
		}
	}
	return best, float64(bestCount) / float64(len(history))
}

// Package transcript holds the ordered stream of committed labels that a
// session has produced, ready for syllable assembly downstream.
package transcript

import (
	"strings"

	"github.com/ayusman/signtalk/internal/labels"
)

// Stream is an append-only (with backspace) sequence of committed labels.
type Stream struct {
	items []labels.Label
}

// Append adds l to the end of the stream. labels.None is ignored.
func (s *Stream) Append(l labels.Label) bool {
	if l == labels.None {
		return false
	}
	s.items = append(s.items, l)
	return true
}

// Backspace removes and returns the last label.
func (s *Stream) Backspace() (labels.Label, bool) {
	if len(s.items) == 0 {
		return labels.None, false
	}
	last := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return last, true
}

// Clear empties the stream.
func (s *Stream) Clear() {
	s.items = s.items[:0]
}

// Len returns the number of labels.
func (s *Stream) Len() int {
	return len(s.items)
}

// Labels returns a copy of the stream.
func (s *Stream) Labels() []labels.Label {
	out := make([]labels.Label, len(s.items))
	copy(out, s.items)
	return out
}

// String renders the stream by concatenating label names.
func (s *Stream) String(t *labels.Table) string {
	var b strings.Builder
	for _, l := range s.items {
		b.WriteString(t.Name(l))
	}
	return b.String()
}

package landmark

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Record is one line of a recorded landmark stream. A record either carries a
// frame or a control instruction for the replaying session.
type Record struct {
	Line      int
	Frame     Frame
	Target    string // switch the requested target label
	Recognize bool   // user-triggered recognition request
}

// Source yields landmark records in order. Next returns io.EOF when the
// stream is exhausted.
type Source interface {
	Next() (Record, error)
	Close() error
}

// Reader decodes newline-delimited JSON records, one per line.
//
// Frame lines follow the extractor's output:
//
//	{"hands":[{"points":[{"id":0,"x":0.5,"y":0.8,"visibility":1}], "handedness":"Right"}]}
//
// Points without an "id" take their position in the list as id, the way the
// MediaPipe service emits them. Control lines are {"target":"ㄱ"} and
// {"recognize":true}. Blank lines and lines starting with '#' are skipped.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReader creates a Reader over r. If r is an io.Closer it is closed by Close.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	reader := &Reader{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader
}

// Next decodes the next record.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var line jsonLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return Record{}, fmt.Errorf("parse line %d: %w", r.line, err)
		}

		rec := Record{
			Line:      r.line,
			Target:    line.Target,
			Recognize: line.Recognize,
		}
		// Only the first hand is used; a frame with no hands is a "no hand" frame.
		if len(line.Hands) > 0 {
			rec.Frame = line.Hands[0].toFrame()
		}
		rec.Frame.Timestamp = line.Timestamp
		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return Record{}, io.EOF
}

// Close closes the underlying stream if it is closable.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// jsonLine represents one line of the JSON stream.
type jsonLine struct {
	Hands     []jsonHand `json:"hands"`
	Timestamp int64      `json:"ts"`
	Target    string     `json:"target"`
	Recognize bool       `json:"recognize"`
}

// jsonHand represents the JSON structure emitted by the landmark extractor.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	ID         *int     `json:"id"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Visibility *float64 `json:"visibility"`
}

func (h jsonHand) toFrame() Frame {
	frame := Frame{
		Points:     make([]Point, 0, len(h.Points)),
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i, p := range h.Points {
		id := i
		if p.ID != nil {
			id = *p.ID
		}
		visibility := 1.0
		if p.Visibility != nil {
			visibility = *p.Visibility
		}
		frame.Points = append(frame.Points, Point{
			ID:         id,
			X:          p.X,
			Y:          p.Y,
			Visibility: visibility,
		})
	}

	return frame
}

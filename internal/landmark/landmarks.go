// Package landmark provides the per-frame hand landmark types consumed by the
// recognition engine, along with readers for recorded landmark streams.
package landmark

import "sort"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point is a single tracked 2D landmark. Coordinates are normalized to the
// image size, so X and Y lie in [0,1].
type Point struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// Frame holds the landmarks extracted from one video frame.
// A frame without points means no hand was detected.
type Frame struct {
	Points     []Point `json:"points"`
	Handedness string  `json:"handedness,omitempty"` // "Left" or "Right"
	Score      float64 `json:"score,omitempty"`
	Timestamp  int64   `json:"ts,omitempty"` // milliseconds
}

// HandDetected reports whether the frame carries any landmarks.
func (f Frame) HandDetected() bool {
	return len(f.Points) > 0
}

// Point returns the landmark with the given id.
func (f Frame) Point(id int) (Point, bool) {
	for _, p := range f.Points {
		if p.ID == id {
			return p, true
		}
	}
	return Point{}, false
}

// Coords flattens the frame into an (x, y) vector ordered by landmark id.
// A complete MediaPipe hand yields 2*NumLandmarks values.
func (f Frame) Coords() []float64 {
	points := make([]Point, len(f.Points))
	copy(points, f.Points)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].ID < points[j].ID
	})

	coords := make([]float64, 0, 2*len(points))
	for _, p := range points {
		coords = append(coords, p.X, p.Y)
	}
	return coords
}

// Translate returns a copy of the frame with every point shifted by (dx, dy).
func (f Frame) Translate(dx, dy float64) Frame {
	moved := Frame{
		Points:     make([]Point, len(f.Points)),
		Handedness: f.Handedness,
		Score:      f.Score,
		Timestamp:  f.Timestamp,
	}
	for i, p := range f.Points {
		p.X += dx
		p.Y += dy
		moved.Points[i] = p
	}
	return moved
}

package landmark

import (
	"io"
	"sync"
)

// MockSource is a test implementation of Source that replays preset records.
type MockSource struct {
	mu      sync.Mutex
	records []Record
	index   int
	err     error
}

// NewMockSource creates a MockSource that yields the given records in order.
func NewMockSource(records ...Record) *MockSource {
	return &MockSource{records: records}
}

// SetError sets the error that will be returned by Next.
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Next returns the next preset record, or io.EOF once all were consumed.
func (m *MockSource) Next() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Record{}, m.err
	}
	if m.index >= len(m.records) {
		return Record{}, io.EOF
	}
	rec := m.records[m.index]
	m.index++
	return rec, nil
}

// Close is a no-op for the mock source.
func (m *MockSource) Close() error {
	return nil
}

// FistFrame returns a preset frame of a closed hand with the thumb held
// against the index finger, the shape used for the ㄱ family of signs.
func FistFrame() Frame {
	return presetFrame([NumLandmarks][2]float64{
		Wrist:     {0.50, 0.80},
		ThumbCMC:  {0.55, 0.75},
		ThumbMCP:  {0.58, 0.65},
		ThumbIP:   {0.58, 0.50},
		ThumbTip:  {0.58, 0.35},
		IndexMCP:  {0.55, 0.70},
		IndexPIP:  {0.55, 0.68},
		IndexDIP:  {0.52, 0.70},
		IndexTip:  {0.50, 0.72},
		MiddleMCP: {0.50, 0.68},
		MiddlePIP: {0.50, 0.66},
		MiddleDIP: {0.47, 0.68},
		MiddleTip: {0.45, 0.70},
		RingMCP:   {0.45, 0.70},
		RingPIP:   {0.45, 0.68},
		RingDIP:   {0.42, 0.70},
		RingTip:   {0.40, 0.72},
		PinkyMCP:  {0.40, 0.72},
		PinkyPIP:  {0.40, 0.70},
		PinkyDIP:  {0.37, 0.72},
		PinkyTip:  {0.35, 0.74},
	})
}

// OpenPalmFrame returns a preset frame with all fingers extended.
func OpenPalmFrame() Frame {
	return presetFrame([NumLandmarks][2]float64{
		Wrist:     {0.50, 0.80},
		ThumbCMC:  {0.55, 0.75},
		ThumbMCP:  {0.62, 0.70},
		ThumbIP:   {0.68, 0.65},
		ThumbTip:  {0.73, 0.60},
		IndexMCP:  {0.55, 0.68},
		IndexPIP:  {0.57, 0.55},
		IndexDIP:  {0.58, 0.45},
		IndexTip:  {0.58, 0.35},
		MiddleMCP: {0.50, 0.66},
		MiddlePIP: {0.50, 0.52},
		MiddleDIP: {0.50, 0.40},
		MiddleTip: {0.50, 0.28},
		RingMCP:   {0.45, 0.68},
		RingPIP:   {0.43, 0.55},
		RingDIP:   {0.42, 0.45},
		RingTip:   {0.42, 0.35},
		PinkyMCP:  {0.40, 0.70},
		PinkyPIP:  {0.37, 0.60},
		PinkyDIP:  {0.35, 0.50},
		PinkyTip:  {0.34, 0.42},
	})
}

func presetFrame(coords [NumLandmarks][2]float64) Frame {
	frame := Frame{
		Points:     make([]Point, NumLandmarks),
		Handedness: "Right",
		Score:      0.95,
	}
	for id, xy := range coords {
		frame.Points[id] = Point{ID: id, X: xy[0], Y: xy[1], Visibility: 1}
	}
	return frame
}

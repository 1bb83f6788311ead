package decision

import "github.com/ayusman/signtalk/internal/labels"

// DefaultHoldFrames is how long a committed label stays on display.
const DefaultHoldFrames = 20

// State is the display state.
type State int

const (
	// Idle means the display follows live labels.
	Idle State = iota
	// Holding means a committed label is pinned to the display.
	Holding
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Holding:
		return "HOLDING"
	default:
		return "UNKNOWN"
	}
}

// Hold debounces the displayed label. After Start the committed label stays
// displayed for a fixed number of ticks regardless of live labels.
type Hold struct {
	frames    int
	state     State
	remaining int
	label     labels.Label
}

// NewHold creates an idle Hold that pins labels for frames ticks.
func NewHold(frames int) *Hold {
	if frames < 0 {
		frames = 0
	}
	return &Hold{frames: frames}
}

// Offer shows a live label. It is ignored while holding.
func (h *Hold) Offer(l labels.Label) {
	if h.state == Idle {
		h.label = l
	}
}

// Start pins l to the display and enters the holding state.
// Starting with labels.None clears the display and stays idle.
func (h *Hold) Start(l labels.Label) {
	h.label = l
	if l == labels.None || h.frames == 0 {
		h.state = Idle
		h.remaining = 0
		return
	}
	h.state = Holding
	h.remaining = h.frames
}

// Tick advances the countdown by one frame.
func (h *Hold) Tick() {
	if h.state != Holding {
		return
	}
	h.remaining--
	if h.remaining <= 0 {
		h.state = Idle
		h.remaining = 0
	}
}

// Label returns the displayed label.
func (h *Hold) Label() labels.Label {
	return h.label
}

// State returns the current state.
func (h *Hold) State() State {
	return h.state
}

// Remaining returns the ticks left before the display is released.
func (h *Hold) Remaining() int {
	return h.remaining
}

// Holding reports whether a committed label is pinned.
func (h *Hold) Holding() bool {
	return h.state == Holding
}

// Reset releases the display and clears the label.
func (h *Hold) Reset() {
	h.state = Idle
	h.remaining = 0
	h.label = labels.None
}

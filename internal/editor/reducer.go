package editor

import (
	"fmt"
	"math"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

const (
	// DefaultMargin is the inset of the initial quad from the image edges.
	DefaultMargin = 30

	// HandleSize is the side of a handle's square hit box in pixels.
	HandleSize = 14
)

// DefaultQuad returns the quad inset by margin from each edge of a w x h
// image. Only when 2*margin would reach across the shorter side is the
// margin reduced to min(w, h)/4, so small images still get a non-inverted
// quad.
func DefaultQuad(w, h, margin int) geometry.Quad {
	if margin < 0 {
		margin = 0
	}
	if short := min(w, h); 2*margin >= short {
		margin = max(short/4, 0)
	}
	m := float64(margin)
	fw, fh := float64(w), float64(h)
	return geometry.Quad{{X: m, Y: m}, {X: fw - m, Y: m}, {X: fw - m, Y: fh - m}, {X: m, Y: fh - m}}
}

// HitTest returns the index of the first handle whose size x size box
// contains (x, y), or -1. The box is open: |x-px| and |y-py| must both be
// strictly less than size/2.
func HitTest(q geometry.Quad, x, y float64, size int) int {
	half := float64(size) / 2
	for i, p := range q {
		if math.Abs(x-p.X) < half && math.Abs(y-p.Y) < half {
			return i
		}
	}
	return -1
}

// EventKind identifies a pointer event.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	PointerLeave
)

var eventKindNames = map[EventKind]string{
	PointerDown:  "down",
	PointerMove:  "move",
	PointerUp:    "up",
	PointerLeave: "leave",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind converts "down", "move", "up" or "leave" to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range eventKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown pointer event: %q", s)
}

// Event is a pointer event in natural image pixels.
type Event struct {
	Kind EventKind
	X, Y float64
}

// DragState records the handle being dragged and where inside its hit box
// it was grabbed.
type DragState struct {
	Handle     int            `json:"handle"`
	GrabOffset geometry.Point `json:"grab_offset"`
}

// State is the editor state. Drag is nil while idle.
type State struct {
	Quad geometry.Quad `json:"quad"`
	Drag *DragState    `json:"drag,omitempty"`

	// HandleSize overrides the hit box side; zero means HandleSize.
	HandleSize int `json:"-"`
}

// Dragging returns the active handle, if any.
func (s State) Dragging() (int, bool) {
	if s.Drag == nil {
		return -1, false
	}
	return s.Drag.Handle, true
}

func (s State) handleSize() int {
	if s.HandleSize > 0 {
		return s.HandleSize
	}
	return HandleSize
}

// Reduce applies e to s and returns the new state. s is not modified.
//
//   - PointerDown over a handle starts dragging it; elsewhere it is ignored.
//   - PointerMove while dragging moves that corner to the pointer, with no
//     clamping to the image. While idle it is ignored.
//   - PointerUp and PointerLeave always end the drag.
func Reduce(s State, e Event) State {
	switch e.Kind {
	case PointerDown:
		i := HitTest(s.Quad, e.X, e.Y, s.handleSize())
		if i < 0 {
			return s
		}
		s.Drag = &DragState{
			Handle:     i,
			GrabOffset: geometry.Point{X: e.X - s.Quad[i].X, Y: e.Y - s.Quad[i].Y},
		}
	case PointerMove:
		if s.Drag == nil {
			return s
		}
		s.Quad[s.Drag.Handle] = geometry.Point{X: e.X, Y: e.Y}
	case PointerUp, PointerLeave:
		s.Drag = nil
	}
	return s
}

package editor

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

var (
	// ErrSessionClosed is returned once a session has been confirmed or
	// cancelled.
	ErrSessionClosed = errors.New("editing session is closed")

	// ErrQuadChanged is returned by ConfirmQuad when the corners moved since
	// the caller read them.
	ErrQuadChanged = errors.New("corners changed since they were read")

	// ErrHandleIndex is returned for a corner index outside 0-3.
	ErrHandleIndex = errors.New("handle index out of range")
)

// Options tunes a new Editor. Zero fields take the package defaults; a
// negative Margin places the initial corners on the image corners.
type Options struct {
	Margin     int
	HandleSize int
}

// Editor is one corner editing session over a w x h image. It is safe for
// concurrent use; events are applied one at a time.
type Editor struct {
	mu     sync.Mutex
	width  int
	height int
	state  State
	closed bool
}

// Start begins a session over img with the default margin quad.
func Start(img image.Image) *Editor {
	b := img.Bounds()
	return StartSize(b.Dx(), b.Dy())
}

// StartSize begins a session over a w x h image.
func StartSize(w, h int) *Editor {
	return New(w, h, Options{})
}

// New begins a session over a w x h image with opts.
func New(w, h int, opts Options) *Editor {
	margin := opts.Margin
	if margin == 0 {
		margin = DefaultMargin
	}
	handle := opts.HandleSize
	if handle <= 0 {
		handle = HandleSize
	}
	return &Editor{
		width:  w,
		height: h,
		state: State{
			Quad:       DefaultQuad(w, h, margin),
			HandleSize: handle,
		},
	}
}

// Size returns the image dimensions the session was started with.
func (e *Editor) Size() (int, int) {
	return e.width, e.height
}

// Dispatch applies ev and returns the resulting state. Events on a closed
// session are ignored.
func (e *Editor) Dispatch(ev Event) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.state = Reduce(e.state, ev)
	}
	return e.snapshot()
}

func (e *Editor) OnPointerDown(x, y float64) { e.Dispatch(Event{Kind: PointerDown, X: x, Y: y}) }

func (e *Editor) OnPointerMove(x, y float64) { e.Dispatch(Event{Kind: PointerMove, X: x, Y: y}) }

func (e *Editor) OnPointerUp(x, y float64) { e.Dispatch(Event{Kind: PointerUp, X: x, Y: y}) }

func (e *Editor) OnPointerLeave() { e.Dispatch(Event{Kind: PointerLeave}) }

// State returns a copy of the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// snapshot copies the state so callers never share the DragState pointer.
// Caller holds e.mu.
func (e *Editor) snapshot() State {
	s := e.state
	if s.Drag != nil {
		d := *s.Drag
		s.Drag = &d
	}
	return s
}

// Quad returns the current corners.
func (e *Editor) Quad() geometry.Quad {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Quad
}

// Dragging returns the handle being dragged, if any.
func (e *Editor) Dragging() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Dragging()
}

// Handles returns the square drawn for each corner, the same size as its hit
// box.
func (e *Editor) Handles() []image.Rectangle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]image.Rectangle, len(e.state.Quad))
	for i, p := range e.state.Quad {
		out[i] = imaging.HandleRect(p, e.state.handleSize())
	}
	return out
}

// HandleSize returns the hit box side used by this session.
func (e *Editor) HandleSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.handleSize()
}

// SetCorner moves corner i to p directly and ends any drag.
func (e *Editor) SetCorner(i int, p geometry.Point) error {
	if i < 0 || i >= len(e.state.Quad) {
		return fmt.Errorf("%w: %d", ErrHandleIndex, i)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSessionClosed
	}
	e.state.Quad[i] = p
	e.state.Drag = nil
	return nil
}

// SetQuad replaces all four corners and ends any drag.
func (e *Editor) SetQuad(q geometry.Quad) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSessionClosed
	}
	e.state.Quad = q
	e.state.Drag = nil
	return nil
}

// Confirm closes the session and returns the corners to rectify.
func (e *Editor) Confirm() (geometry.Quad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return geometry.Quad{}, ErrSessionClosed
	}
	e.close()
	return e.state.Quad, nil
}

// ConfirmQuad closes the session only if its corners still equal q, so a
// caller that already rectified q never reports a quad it did not use. On
// ErrQuadChanged the session stays open.
func (e *Editor) ConfirmQuad(q geometry.Quad) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSessionClosed
	}
	if e.state.Quad != q {
		return ErrQuadChanged
	}
	e.close()
	return nil
}

func (e *Editor) close() {
	e.closed = true
	e.state.Drag = nil
}

// Cancel closes the session without producing corners.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSessionClosed
	}
	e.close()
	return nil
}

// Closed reports whether Confirm or Cancel has been called.
func (e *Editor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

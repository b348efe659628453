// Package editor implements the corner editor: four draggable handles over
// a photo that the user positions on the page corners before rectifying.
//
// The drag logic is a pure reducer, Reduce(State, Event) State, with two
// states: idle (State.Drag == nil) and dragging one handle. Editor wraps the
// reducer with a mutex and the confirm/cancel lifecycle of one session.
//
// Coordinates are natural image pixels. Converting from display space is the
// caller's job.
package editor

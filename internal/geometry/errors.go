package geometry

import (
	"errors"
	"fmt"
)

// ErrDegenerateCorrespondence is matched (via errors.Is) by every estimation
// failure: collinear or coincident points, non-finite input, a singular
// system or a result that cannot be normalized to h8 == 1.
var ErrDegenerateCorrespondence = errors.New("degenerate correspondence")

// DegenerateError describes why a set of correspondences was rejected.
type DegenerateError struct {
	Reason string
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDegenerateCorrespondence, e.Reason)
}

func (e *DegenerateError) Unwrap() error {
	return ErrDegenerateCorrespondence
}

func degenerate(format string, args ...interface{}) error {
	return &DegenerateError{Reason: fmt.Sprintf(format, args...)}
}

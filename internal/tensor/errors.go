package tensor

import (
	"errors"
	"fmt"
)

// Error categories shared by the engine. Test with errors.Is.
var (
	// ErrShapeMismatch reports a violated dimension invariant between paired
	// tensors, or an access outside a tensor's extents.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrState reports an operation invoked out of sequence, such as a
	// backward pass with no matching forward, or a submit to a closed session.
	ErrState = errors.New("invalid state")

	// ErrAllocation reports that tensor or layer storage could not be acquired.
	ErrAllocation = errors.New("allocation failure")
)

// ShapeError provides detail about a shape violation.
// It unwraps to ErrShapeMismatch.
type ShapeError struct {
	Op     string // Operation that detected the violation
	Want   Dims   // Expected dimensions (zero if not applicable)
	Got    Dims   // Offending dimensions
	Detail string // Additional details
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Want != (Dims{}) {
		return fmt.Sprintf("%s: shape mismatch: want %v, got %v", e.Op, e.Want, e.Got)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: shape mismatch: %v: %s", e.Op, e.Got, e.Detail)
	}
	return fmt.Sprintf("%s: shape mismatch: %v", e.Op, e.Got)
}

// Unwrap lets errors.Is match ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// Mismatch builds a ShapeError comparing two dimension sets.
func Mismatch(op string, want, got Dims) error {
	return &ShapeError{Op: op, Want: want, Got: got}
}

func stateErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

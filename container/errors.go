package container

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the data is shorter than the fixed
	// header, or shorter than the body length the header declares.
	ErrTruncated = errors.New("container truncated")

	// ErrUnrecognizedFormat is returned when the data does not start with [Magic].
	ErrUnrecognizedFormat = errors.New("unrecognized container format")
)

// SerializationError records a failure to encode or decode the container body.
type SerializationError struct {
	Op  string // "encode" or "decode"
	Err error  // underlying error
}

// Error returns a human-readable description of the serialization failure.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("container body %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// VersionMismatchError reports that the frame version byte and the version
// embedded in the identity disagree.
type VersionMismatchError struct {
	Frame    uint8 // version byte of the outer frame
	Embedded uint8 // version of the embedded identity
}

// Error returns a human-readable description of the mismatch.
func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("container version mismatch: frame v%d, identity v%d", e.Frame, e.Embedded)
}

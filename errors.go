package machinebind

import (
	"errors"
	"fmt"
)

// Sentinel errors returned while observing the host and recorded in [DiagnosticInfo.Errors].
var (
	// ErrEmptyValue is recorded in [DiagnosticInfo.Errors] when a host
	// source returned an empty value.
	ErrEmptyValue = errors.New("empty value returned")

	// ErrNotFound is returned when a hardware value is not found in
	// command output or system files.
	ErrNotFound = errors.New("value not found")

	// ErrOEMPlaceholder is returned when a hardware value matches a
	// BIOS/UEFI OEM placeholder such as "To be filled by O.E.M.".
	ErrOEMPlaceholder = errors.New("value is OEM placeholder")

	// ErrUnsupportedPlatform is returned by the fallback platform on
	// operating systems without a dedicated implementation.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrDigestMismatch is returned when a serialized identity carries a
	// digest that does not match its own fields.
	ErrDigestMismatch = errors.New("identity digest does not match its fields")
)

// HostQueryError records a mandatory host signal that could not be obtained
// at all. It is the only error that makes identity creation fail.
type HostQueryError struct {
	Source string // host source, e.g. "network"
	Err    error  // underlying error
}

// Error returns a human-readable description of the host query failure.
func (e *HostQueryError) Error() string {
	return fmt.Sprintf("host query %q failed: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *HostQueryError) Unwrap() error {
	return e.Err
}

// CommandError records a failed system command execution.
// Use [errors.As] to extract the command name from wrapped errors.
type CommandError struct {
	Command string // command name, e.g. "ioreg", "dmidecode", "wmic"
	Err     error  // underlying error from exec
}

// Error returns a human-readable description of the command failure.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ParseError records a failure while parsing command or system output.
// Use [errors.As] to extract the source from wrapped errors.
type ParseError struct {
	Source string // data source, e.g. "system_profiler JSON", "ioreg output"
	Err    error  // underlying parse error
}

// Error returns a human-readable description of the parse failure.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ComponentError records a failure while collecting a specific host source.
// These errors appear in [DiagnosticInfo.Errors] and can be inspected with [errors.As].
type ComponentError struct {
	Component string // component name, e.g. "cpu", "machine-id", "disk"
	Err       error  // underlying error
}

// Error returns a human-readable description of the component failure.
func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %q: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *ComponentError) Unwrap() error {
	return e.Err
}

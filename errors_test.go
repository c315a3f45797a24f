package machinebind

import (
	"errors"
	"fmt"
	"testing"
)

func TestHostQueryErrorMessage(t *testing.T) {
	inner := fmt.Errorf("route ip+net: no such network interface")
	err := &HostQueryError{Source: "network", Err: inner}

	want := `host query "network" failed: route ip+net: no such network interface`
	if err.Error() != want {
		t.Errorf("HostQueryError.Error() = %q, want %q", err.Error(), want)
	}
}

func TestHostQueryErrorAs(t *testing.T) {
	inner := fmt.Errorf("permission denied")
	err := fmt.Errorf("create identity: %w", &HostQueryError{Source: "network", Err: inner})

	var hostErr *HostQueryError
	if !errors.As(err, &hostErr) {
		t.Fatal("errors.As() should find HostQueryError in wrapped chain")
	}
	if hostErr.Source != "network" {
		t.Errorf("HostQueryError.Source = %q, want %q", hostErr.Source, "network")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is() should reach the inner error")
	}
}

func TestCommandErrorMessage(t *testing.T) {
	inner := fmt.Errorf("exit status 1")
	err := &CommandError{Command: "dmidecode", Err: inner}

	want := `command "dmidecode" failed: exit status 1`
	if err.Error() != want {
		t.Errorf("CommandError.Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("exit status 1")
	err := &CommandError{Command: "ioreg", Err: inner}

	if err.Unwrap() != inner {
		t.Error("CommandError.Unwrap() did not return inner error")
	}
}

func TestParseErrorMessage(t *testing.T) {
	inner := fmt.Errorf("unexpected end of JSON input")
	err := &ParseError{Source: "system_profiler JSON", Err: inner}

	want := "failed to parse system_profiler JSON: unexpected end of JSON input"
	if err.Error() != want {
		t.Errorf("ParseError.Error() = %q, want %q", err.Error(), want)
	}
}

func TestParseErrorAs(t *testing.T) {
	err := fmt.Errorf("board serial: %w", &ParseError{Source: "dmidecode output", Err: ErrNotFound})

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatal("errors.As() should find ParseError in wrapped chain")
	}
	if parseErr.Source != "dmidecode output" {
		t.Errorf("ParseError.Source = %q, want %q", parseErr.Source, "dmidecode output")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) should be true")
	}
}

func TestComponentErrorMessage(t *testing.T) {
	err := &ComponentError{Component: ComponentMachineID, Err: ErrEmptyValue}

	want := `component "machine-id": empty value returned`
	if err.Error() != want {
		t.Errorf("ComponentError.Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrEmptyValue) {
		t.Error("errors.Is(err, ErrEmptyValue) should be true")
	}
}

func TestSentinelErrorsDistinct(t *testing.T) {
	sentinels := []error{ErrEmptyValue, ErrNotFound, ErrOEMPlaceholder, ErrUnsupportedPlatform, ErrDigestMismatch}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}

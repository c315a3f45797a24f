//go:build darwin

package machinebind

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
)

// Compiled regexes for ioreg output parsing.
var (
	ioregUUIDRe   = regexp.MustCompile(`"IOPlatformUUID"\s*=\s*"([^"]+)"`)
	ioregSerialRe = regexp.MustCompile(`"IOPlatformSerialNumber"\s*=\s*"([^"]+)"`)
)

// spHardwareDataType represents the JSON output of `system_profiler SPHardwareDataType -json`.
type spHardwareDataType struct {
	SPHardwareDataType []spHardwareEntry `json:"SPHardwareDataType"`
}

type spHardwareEntry struct {
	SerialNumber string `json:"serial_number"`
}

// darwinPlatform reads identifiers from the IOPlatformExpertDevice registry
// entry and system_profiler.
type darwinPlatform struct {
	executor CommandExecutor
	logger   *slog.Logger
}

func newPlatform(executor CommandExecutor, logger *slog.Logger) Platform {
	return &darwinPlatform{executor: executor, logger: logger}
}

// PlatformID retrieves the hardware UUID from ioreg.
func (p *darwinPlatform) PlatformID(ctx context.Context) (string, error) {
	output, err := executeCommand(ctx, p.executor, p.logger, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
	if err != nil {
		return "", fmt.Errorf("failed to get hardware UUID: %w", err)
	}

	match := ioregUUIDRe.FindStringSubmatch(output)
	if len(match) < 2 {
		return "", &ParseError{Source: "ioreg output", Err: ErrNotFound}
	}

	return normalizeMachineID(match[1])
}

// BoardSerial retrieves the system serial number from system_profiler JSON,
// falling back to ioreg.
func (p *darwinPlatform) BoardSerial(ctx context.Context) (string, error) {
	output, err := executeCommand(ctx, p.executor, p.logger, "system_profiler", "SPHardwareDataType", "-json")
	if err == nil {
		serial, parseErr := extractHardwareField(output, func(e spHardwareEntry) string {
			return e.SerialNumber
		})
		if parseErr == nil {
			return serial, nil
		}
		if p.logger != nil {
			p.logger.Debug("system_profiler serial unavailable, trying ioreg", "error", parseErr)
		}
	}

	return p.serialViaIOReg(ctx)
}

// serialViaIOReg retrieves the serial number using ioreg as fallback.
func (p *darwinPlatform) serialViaIOReg(ctx context.Context) (string, error) {
	output, err := executeCommand(ctx, p.executor, p.logger, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
	if err != nil {
		return "", fmt.Errorf("failed to get serial number: %w", err)
	}

	match := ioregSerialRe.FindStringSubmatch(output)
	if len(match) < 2 {
		return "", &ParseError{Source: "ioreg output", Err: ErrNotFound}
	}
	if !isValidSerial(match[1]) {
		return "", ErrOEMPlaceholder
	}

	return match[1], nil
}

// extractHardwareField extracts a field from system_profiler SPHardwareDataType JSON output.
func extractHardwareField(jsonOutput string, fieldFn func(spHardwareEntry) string) (string, error) {
	var hw spHardwareDataType
	if err := json.Unmarshal([]byte(jsonOutput), &hw); err != nil {
		return "", &ParseError{Source: "system_profiler JSON", Err: err}
	}

	if len(hw.SPHardwareDataType) == 0 {
		return "", &ParseError{Source: "system_profiler JSON", Err: ErrNotFound}
	}

	value := fieldFn(hw.SPHardwareDataType[0])
	if value == "" {
		return "", ErrEmptyValue
	}

	return value, nil
}

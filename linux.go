//go:build linux

package machinebind

import (
	"context"
	"fmt"
	"log/slog"
)

// linuxPlatform reads identifiers from systemd / D-Bus and DMI, falling
// back to dmidecode for the serial number.
type linuxPlatform struct {
	executor CommandExecutor
	logger   *slog.Logger
}

func newPlatform(executor CommandExecutor, logger *slog.Logger) Platform {
	return &linuxPlatform{executor: executor, logger: logger}
}

// PlatformID retrieves the systemd machine ID.
func (p *linuxPlatform) PlatformID(_ context.Context) (string, error) {
	locations := []string{
		"/etc/machine-id",
		"/var/lib/dbus/machine-id",
	}

	value, err := readFirstValidFromLocations(locations, func(v string) bool {
		_, err := normalizeMachineID(v)

		return err == nil
	})
	if err != nil {
		return "", err
	}

	return normalizeMachineID(value)
}

// BoardSerial retrieves the motherboard serial from DMI, then asks dmidecode
// for the system serial number.
func (p *linuxPlatform) BoardSerial(ctx context.Context) (string, error) {
	locations := []string{
		"/sys/class/dmi/id/board_serial",
		"/sys/devices/virtual/dmi/id/board_serial",
	}

	if serial, err := readFirstValidFromLocations(locations, isValidSerial); err == nil {
		return serial, nil
	}

	output, err := executeCommand(ctx, p.executor, p.logger, "dmidecode", "-s", "system-serial-number")
	if err != nil {
		return "", fmt.Errorf("failed to get board serial: %w", err)
	}

	return parseDMIDecodeSerial(output)
}

// parseDMIDecodeSerial returns the first non-comment line of dmidecode output.
func parseDMIDecodeSerial(output string) (string, error) {
	for line := range splitLines(output) {
		if line == "" || line[0] == '#' {
			continue
		}
		if !isValidSerial(line) {
			return "", ErrOEMPlaceholder
		}

		return line, nil
	}

	return "", &ParseError{Source: "dmidecode output", Err: ErrNotFound}
}

//go:build windows

package machinebind

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// windowsPlatform reads the machine GUID from the registry and the board
// serial through wmic, with PowerShell as fallback.
type windowsPlatform struct {
	executor CommandExecutor
	logger   *slog.Logger
}

func newPlatform(executor CommandExecutor, logger *slog.Logger) Platform {
	return &windowsPlatform{executor: executor, logger: logger}
}

// PlatformID retrieves HKLM\SOFTWARE\Microsoft\Cryptography\MachineGuid.
func (p *windowsPlatform) PlatformID(_ context.Context) (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Cryptography`,
		registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return "", fmt.Errorf("open cryptography key: %w", err)
	}
	defer key.Close()

	guid, _, err := key.GetStringValue("MachineGuid")
	if err != nil {
		return "", fmt.Errorf("read MachineGuid: %w", err)
	}

	return normalizeMachineID(guid)
}

// BoardSerial retrieves the motherboard serial number using wmic, with PowerShell fallback.
func (p *windowsPlatform) BoardSerial(ctx context.Context) (string, error) {
	output, err := executeCommand(ctx, p.executor, p.logger, "wmic", "baseboard", "get", "SerialNumber", "/value")
	if err == nil {
		if value, parseErr := parseWmicValue(output, "SerialNumber="); parseErr == nil {
			return value, nil
		}
	}

	psOutput, psErr := executeCommand(ctx, p.executor, p.logger, "powershell", "-Command",
		"Get-CimInstance -ClassName Win32_BaseBoard | Select-Object -ExpandProperty SerialNumber")
	if psErr != nil {
		return "", fmt.Errorf("failed to get motherboard serial: wmic: %w, powershell: %w", err, psErr)
	}

	value := strings.TrimSpace(psOutput)
	if value == "" {
		return "", ErrEmptyValue
	}
	if !isValidSerial(value) {
		return "", ErrOEMPlaceholder
	}

	return value, nil
}

// parseWmicValue extracts value from wmic output with given prefix.
func parseWmicValue(output, prefix string) (string, error) {
	for line := range splitLines(output) {
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		value := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		if !isValidSerial(value) {
			continue
		}

		return value, nil
	}

	return "", &ParseError{Source: "wmic output", Err: fmt.Errorf("prefix %s: %w", prefix, ErrNotFound)}
}

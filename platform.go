package machinebind

import (
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/google/uuid"
)

// readFile is replaced in tests.
var readFile = os.ReadFile

// normalizeMachineID trims a platform identifier and rejects empty values and
// the all-zero UUID some virtual machines report.
func normalizeMachineID(raw string) (string, error) {
	value := strings.Trim(strings.TrimSpace(raw), `"`)
	if value == "" {
		return "", ErrEmptyValue
	}

	if parsed, err := uuid.Parse(value); err == nil && parsed == uuid.Nil {
		return "", fmt.Errorf("nil UUID %q: %w", value, ErrNotFound)
	}

	return value, nil
}

// isValidSerial reports whether serial is neither empty nor an OEM placeholder.
func isValidSerial(serial string) bool {
	serial = strings.TrimSpace(serial)

	return serial != "" && !strings.EqualFold(serial, biosFirmwareMessage) && !strings.EqualFold(serial, "Default string")
}

// readFirstValidFromLocations reads from multiple locations until valid value found.
func readFirstValidFromLocations(locations []string, validator func(string) bool) (string, error) {
	for _, location := range locations {
		data, err := readFile(location)
		if err != nil {
			continue
		}

		value := strings.TrimSpace(string(data))
		if validator(value) {
			return value, nil
		}
	}

	return "", fmt.Errorf("no valid value in %s: %w", strings.Join(locations, ", "), ErrNotFound)
}

// splitLines yields the trimmed lines of command output.
func splitLines(output string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.SplitSeq(output, "\n") {
			if !yield(strings.TrimSpace(line)) {
				return
			}
		}
	}
}

//go:build linux

package machinebind

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// stubFiles replaces readFile with an in-memory file table for the test.
func stubFiles(t *testing.T, files map[string]string) {
	t.Helper()

	orig := readFile
	readFile = func(name string) ([]byte, error) {
		if v, ok := files[name]; ok {
			return []byte(v), nil
		}

		return nil, fmt.Errorf("open %s: no such file or directory", name)
	}
	t.Cleanup(func() { readFile = orig })
}

func TestLinuxPlatformIDPrefersEtc(t *testing.T) {
	stubFiles(t, map[string]string{
		"/etc/machine-id":          "a1b2c3d4e5f60718293a4b5c6d7e8f90\n",
		"/var/lib/dbus/machine-id": "ffffffffffffffffffffffffffffffff\n",
	})

	got, err := newPlatform(newMockExecutor(), nil).PlatformID(context.Background())
	if err != nil {
		t.Fatalf("PlatformID() error = %v", err)
	}
	if got != "a1b2c3d4e5f60718293a4b5c6d7e8f90" {
		t.Errorf("PlatformID() = %q", got)
	}
}

func TestLinuxPlatformIDFallsBackToDBus(t *testing.T) {
	stubFiles(t, map[string]string{
		"/etc/machine-id":          "\n",
		"/var/lib/dbus/machine-id": "0123456789abcdef0123456789abcdef",
	})

	got, err := newPlatform(newMockExecutor(), nil).PlatformID(context.Background())
	if err != nil || got != "0123456789abcdef0123456789abcdef" {
		t.Errorf("PlatformID() = %q, %v", got, err)
	}
}

func TestLinuxPlatformIDAbsent(t *testing.T) {
	stubFiles(t, map[string]string{})

	_, err := newPlatform(newMockExecutor(), nil).PlatformID(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("PlatformID() error = %v, want ErrNotFound", err)
	}
}

func TestLinuxBoardSerialFromDMI(t *testing.T) {
	stubFiles(t, map[string]string{
		"/sys/class/dmi/id/board_serial": "To be filled by O.E.M.",
		"/sys/devices/virtual/dmi/id/board_serial": "/5DV3Q72/CN12345/\n",
	})

	mock := newMockExecutor()
	got, err := newPlatform(mock, nil).BoardSerial(context.Background())
	if err != nil || got != "/5DV3Q72/CN12345/" {
		t.Errorf("BoardSerial() = %q, %v", got, err)
	}
	if mock.callCount["dmidecode"] != 0 {
		t.Error("dmidecode should not run when DMI files are readable")
	}
}

func TestLinuxBoardSerialFallsBackToDMIDecode(t *testing.T) {
	stubFiles(t, map[string]string{})

	mock := newMockExecutor()
	mock.setOutput("dmidecode", "# SMBIOS entry point\nVMware-56 4d 0d 5e\n")

	got, err := newPlatform(mock, nil).BoardSerial(context.Background())
	if err != nil || got != "VMware-56 4d 0d 5e" {
		t.Errorf("BoardSerial() = %q, %v", got, err)
	}
}

func TestLinuxBoardSerialCommandFailure(t *testing.T) {
	stubFiles(t, map[string]string{})

	mock := newMockExecutor()
	mock.setError("dmidecode", &CommandError{Command: "dmidecode", Err: errors.New("permission denied")})

	_, err := newPlatform(mock, nil).BoardSerial(context.Background())

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Errorf("BoardSerial() error = %v, want CommandError", err)
	}
}

func TestParseDMIDecodeSerial(t *testing.T) {
	tests := []struct {
		output  string
		want    string
		wantErr error
	}{
		{"ABC123\n", "ABC123", nil},
		{"# comment\n\nXYZ\n", "XYZ", nil},
		{"To be filled by O.E.M.\n", "", ErrOEMPlaceholder},
		{"", "", ErrNotFound},
	}

	for _, tt := range tests {
		got, err := parseDMIDecodeSerial(tt.output)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("parseDMIDecodeSerial(%q) error = %v, want %v", tt.output, err, tt.wantErr)
			}

			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseDMIDecodeSerial(%q) = %q, %v; want %q", tt.output, got, err, tt.want)
		}
	}
}

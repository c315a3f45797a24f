//go:build !linux && !darwin && !windows

package machinebind

import (
	"context"
	"log/slog"
)

// otherPlatform reports both platform signals as absent.
type otherPlatform struct{}

func newPlatform(_ CommandExecutor, _ *slog.Logger) Platform {
	return otherPlatform{}
}

func (otherPlatform) PlatformID(context.Context) (string, error) {
	return "", ErrUnsupportedPlatform
}

func (otherPlatform) BoardSerial(context.Context) (string, error) {
	return "", ErrUnsupportedPlatform
}

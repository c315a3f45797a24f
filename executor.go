package machinebind

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// CommandExecutor is an interface for executing system commands, allowing for dependency injection and testing.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

// defaultCommandExecutor implements CommandExecutor using actual system command execution.
type defaultCommandExecutor struct {
	Timeout time.Duration
}

// Execute runs a system command with a timeout and returns its trimmed output.
func (e *defaultCommandExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := exec.CommandContext(timeoutCtx, name, args...).Output()
	if err != nil {
		return "", &CommandError{Command: name, Err: err}
	}

	return strings.TrimSpace(string(output)), nil
}

// executeCommand runs a command through executor, falling back to the real
// executor when none is configured, and logs its timing.
func executeCommand(ctx context.Context, executor CommandExecutor, logger *slog.Logger, name string, args ...string) (string, error) {
	if executor == nil {
		executor = &defaultCommandExecutor{Timeout: defaultTimeout}
	}

	start := time.Now()
	output, err := executor.Execute(ctx, name, args...)
	if logger != nil {
		logger.Debug("command executed",
			"command", name,
			"duration", time.Since(start),
			"error", err,
		)
	}

	return output, err
}

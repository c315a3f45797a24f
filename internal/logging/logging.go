// Package logging builds the CLI's [*slog.Logger] on top of a
// charmbracelet/log handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w at level ("debug", "info", "warn" or
// "error") in format ("text", "json" or "logfmt").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	formatter, err := parseFormat(format)
	if err != nil {
		return nil, err
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		Prefix:          "machinebind",
		ReportTimestamp: formatter != log.TextFormatter,
	})

	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func parseFormat(format string) (log.Formatter, error) {
	switch format {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("unknown log format %q", format)
	}
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/slashdevops/machinebind"
	"github.com/slashdevops/machinebind/container"
	"github.com/slashdevops/machinebind/erase"
	"github.com/slashdevops/machinebind/internal/config"
	"github.com/slashdevops/machinebind/internal/logging"
	"github.com/slashdevops/machinebind/internal/metrics"
)

// errNotBound is returned when a package or digest does not belong to the
// current host.
var errNotBound = errors.New("not bound to this host")

// errOutputInSource is returned when pack --erase-source would erase the
// package it just wrote.
var errOutputInSource = errors.New("package output is inside the source directory")

// app holds state shared by all commands. It is populated by the root
// command's pre-run hook once flags have been parsed.
type app struct {
	configFile string

	// observer replaces host observation when set.
	observer machinebind.Observer

	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	provider *machinebind.Provider
}

func newRootCmd(a *app) *cobra.Command {
	defaults := config.Default()

	root := &cobra.Command{
		Use:   applicationName,
		Short: "Bind directories to the machine that packed them",
		Long: titleStyle.Render(applicationName) + subtitleStyle.Render(" - machine-bound directory packages") + `

machinebind packs a directory into a single file that records the identity
of the host it was created on. The package can later be verified against
the host it is opened on, unpacked, inspected, and the original files can
be securely erased.

` + subtitleStyle.Render("Examples:") + `
  machinebind identity                 Show this host's identity
  machinebind pack ./data -o data.mb   Pack a directory
  machinebind verify data.mb           Check the package belongs here
  machinebind unpack data.mb -d ./out  Verify and extract
  machinebind inspect data.mb          Show header, identity and contents
  machinebind erase ./data             Overwrite and remove files`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	flags.String("log-level", string(defaults.Log.Level), "log level: debug, info, warn or error")
	flags.String("log-format", string(defaults.Log.Format), "log format: text, json or logfmt")
	flags.String("metrics-file", defaults.Metrics.File, "write Prometheus metrics to this textfile on exit")
	flags.Int("package-version", defaults.PackageVersion, "identity and container format version (1-255)")
	flags.Int("passes", defaults.Erase.Passes, "overwrite passes for secure erase")
	flags.Int("compression-level", defaults.Archive.CompressionLevel, "gzip level for packed payloads (-1 to 9)")
	flags.Duration("command-timeout", defaults.Host.CommandTimeout, "timeout for each host query command")

	root.AddCommand(
		newIdentityCmd(a),
		newPackCmd(a),
		newUnpackCmd(a),
		newVerifyCmd(a),
		newVerifyDigestCmd(a),
		newInspectCmd(a),
		newEraseCmd(a),
	)

	return root
}

// setup loads configuration and builds the logger, metrics and provider.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: a.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), string(cfg.Log.Level), string(cfg.Log.Format))
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.metrics = metrics.New()

	a.provider = machinebind.New().
		WithLogger(logger).
		WithTimeout(cfg.Host.CommandTimeout)
	if a.observer != nil {
		a.provider.WithObserver(a.observer)
	}

	logger.Debug("configuration loaded",
		"config_file", a.configFile,
		"package_version", cfg.PackageVersion,
		"passes", cfg.Erase.Passes,
		"command_timeout", cfg.Host.CommandTimeout.String(),
	)

	return nil
}

func (a *app) validator() *container.Validator {
	return container.NewValidator(a.provider).WithLogger(a.logger)
}

func (a *app) eraser() *erase.Eraser {
	return erase.New(a.cfg.Erase.Passes,
		erase.WithLogger(a.logger),
		erase.WithOnErased(func(_ string, size int64) {
			a.metrics.RecordErasedFile(size)
		}),
	)
}

// fail records err against op and returns it.
func (a *app) fail(op string, err error) error {
	a.metrics.RecordError(op)
	a.logger.Debug("operation failed", "op", op, "error", err)

	return err
}

// writeMetrics exports metrics when a textfile is configured.
func (a *app) writeMetrics() error {
	if a.cfg == nil || a.metrics == nil || a.cfg.Metrics.File == "" {
		return nil
	}

	start := time.Now()
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.File); err != nil {
		return fmt.Errorf("write %s: %w", a.cfg.Metrics.File, err)
	}
	a.logger.Debug("metrics written", "file", a.cfg.Metrics.File, "duration", time.Since(start))

	return nil
}

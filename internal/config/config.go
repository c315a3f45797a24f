// Package config loads CLI settings from defaults, an optional config file,
// MACHINEBIND_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by [Load].
// Nested keys use "_" in place of ".", for example MACHINEBIND_ERASE_PASSES.
const EnvPrefix = "MACHINEBIND"

// Level is a log level name.
type Level string

// Format is a log output format name.
type Format string

// Config holds all CLI settings.
type Config struct {
	PackageVersion int           `mapstructure:"package_version" validate:"min=1,max=255"`
	Erase          EraseConfig   `mapstructure:"erase"`
	Archive        ArchiveConfig `mapstructure:"archive"`
	Log            LogConfig     `mapstructure:"log"`
	Host           HostConfig    `mapstructure:"host"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
	Unpack         UnpackConfig  `mapstructure:"unpack"`
}

// EraseConfig configures secure erasure.
type EraseConfig struct {
	Passes int `mapstructure:"passes" validate:"min=1,max=64"`
}

// ArchiveConfig configures payload packing.
type ArchiveConfig struct {
	CompressionLevel int `mapstructure:"compression_level" validate:"min=-1,max=9"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  Level  `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format Format `mapstructure:"format" validate:"oneof=text json logfmt"`
}

// HostConfig configures host observation.
type HostConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"gt=0"`
}

// MetricsConfig configures the Prometheus textfile sink. An empty File
// disables metrics export.
type MetricsConfig struct {
	File string `mapstructure:"file"`
}

// UnpackConfig controls what happens to a package that fails host
// validation. With SelfDestruct set, verify and unpack securely erase it.
type UnpackConfig struct {
	SelfDestruct bool `mapstructure:"self_destruct"`
}

// Version returns the package version as the container version byte.
func (c *Config) Version() uint8 {
	return uint8(c.PackageVersion)
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		PackageVersion: 1,
		Erase:          EraseConfig{Passes: 5},
		Archive:        ArchiveConfig{CompressionLevel: 9},
		Log:            LogConfig{Level: "info", Format: "text"},
		Host:           HostConfig{CommandTimeout: 5 * time.Second},
	}
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"package-version":   "package_version",
	"passes":            "erase.passes",
	"compression-level": "archive.compression_level",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"command-timeout":   "host.command_timeout",
	"metrics-file":      "metrics.file",
	"self-destruct":     "unpack.self_destruct",
}

// LoadOptions controls where [Load] reads settings from.
type LoadOptions struct {
	// ConfigFile is an optional yaml, toml or json file. It must exist when set.
	ConfigFile string
	// Flags, when set, overrides file and environment values with every
	// flag named in [FlagKeys] that the user changed.
	Flags *pflag.FlagSet
}

// Load resolves and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("package_version", defaults.PackageVersion)
	v.SetDefault("erase.passes", defaults.Erase.Passes)
	v.SetDefault("archive.compression_level", defaults.Archive.CompressionLevel)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("log.format", string(defaults.Log.Format))
	v.SetDefault("host.command_timeout", defaults.Host.CommandTimeout)
	v.SetDefault("metrics.file", defaults.Metrics.File)
	v.SetDefault("unpack.self_destruct", defaults.Unpack.SelfDestruct)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		normalizeNamesHook(),
	))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// normalizeNamesHook lower-cases level and format names so "INFO" and
// "Json" are accepted.
func normalizeNamesHook() mapstructure.DecodeHookFuncType {
	levelType := reflect.TypeFor[Level]()
	formatType := reflect.TypeFor[Format]()

	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || (t != levelType && t != formatType) {
			return data, nil
		}

		s, ok := data.(string)
		if !ok {
			return data, nil
		}

		return strings.ToLower(strings.TrimSpace(s)), nil
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report errors under configuration key names rather than Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})

	return v
}

// Validate checks cfg against its field constraints. Each violated
// constraint is reported with its configuration key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	problems := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		problems = append(problems, fmt.Errorf("%s: value %v violates %q", key, fe.Value(), constraint(fe)))
	}

	return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}

	return fe.Tag() + "=" + fe.Param()
}

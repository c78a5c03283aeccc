// Package config loads strata's runtime configuration.
//
// Values come, in increasing precedence, from built-in defaults, a
// .strata.yaml file in the working or home directory, STRATA_* environment
// variables and command-line flags bound by the CLI.
package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/validation"
)

// Keys shared by the config file, the environment and the CLI flags.
const (
	KeyScenario      = "scenario"
	KeyTimeline      = "timeline"
	KeyIntegrityMode = "integrity_mode"
	KeyJournal       = "journal"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
)

// EnvPrefix prefixes every environment variable (STRATA_TIMELINE, ...).
const EnvPrefix = "STRATA"

// FileName is the config file looked up when no explicit path is given.
const FileName = ".strata"

// Config holds the runtime configuration of one strata invocation.
type Config struct {
	Scenario      string `mapstructure:"scenario" validate:"required"`
	Timeline      string `mapstructure:"timeline" validate:"required,pathsafe"`
	IntegrityMode string `mapstructure:"integrity_mode" validate:"oneof=basic comprehensive"`
	Journal       bool   `mapstructure:"journal"`
	LogLevel      string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string `mapstructure:"log_format" validate:"oneof=text json"`
}

// New returns a viper instance with strata's defaults and environment
// binding. Each CLI invocation and each test gets its own instance.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyScenario, ".")
	v.SetDefault(KeyTimeline, "baseline")
	v.SetDefault(KeyIntegrityMode, string(integrity.Basic))
	v.SetDefault(KeyJournal, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads path, or .strata.yaml from the working or home directory
// when path is empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || (path == "" && errors.As(err, &notFound)) {
		return nil
	}
	if path != "" && errors.Is(err, os.ErrNotExist) {
		return errs.NotFound("config file %s does not exist", path)
	}
	return errs.Validation("cannot read config file: %v", err)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Validation("invalid configuration: %v", err)
	}
	cfg.IntegrityMode = strings.ToLower(strings.TrimSpace(cfg.IntegrityMode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := validation.Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Mode returns the configured integrity mode.
func (c Config) Mode() integrity.Mode {
	return integrity.Mode(c.IntegrityMode)
}

// Logger builds the slog logger described by the configuration.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

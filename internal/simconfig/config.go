// Package simconfig resolves process-level configuration from the
// environment using the teacher's declarative option-table shape, trimmed
// to the env-only subset a single-shot binary needs (no TOML file, no CLI
// flags: the argument surface is an external collaborator).
package simconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFormat selects the stderr formatter. Mirrors the MarshalText/String
// idiom of the teacher's own LogFormat type.
type LogFormat int

const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

func (f LogFormat) String() string {
	switch f {
	case LogFormatText:
		return "text"
	case LogFormatJSON:
		return "json"
	default:
		return "text"
	}
}

// Config is the fully-resolved process configuration.
type Config struct {
	LogFormat LogFormat
	LogLevel  string
	NoCache   bool
	CacheDir  string
}

// Option describes one environment-bound configuration value. It mirrors
// the teacher's ConfigOption shape (name, env var, default, setter) without
// the TOML/flag binding the simulator has no use for.
type Option struct {
	Name      string
	EnvVar    string
	Default   string
	SetValue  func(raw string) error
}

// Resolve reads every known ERST_* environment variable into a Config,
// applying defaults for anything unset.
func Resolve() (*Config, error) {
	cfg := &Config{
		LogFormat: LogFormatText,
		LogLevel:  "info",
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	cfg.CacheDir = filepath.Join(homeDir, ".erst", "cache", "sourcemaps")

	opts := []Option{
		{
			Name:    "log-format",
			EnvVar:  "ERST_LOG_FORMAT",
			Default: "text",
			SetValue: func(raw string) error {
				switch raw {
				case "json":
					cfg.LogFormat = LogFormatJSON
				default:
					cfg.LogFormat = LogFormatText
				}
				return nil
			},
		},
		{
			Name:    "log-level",
			EnvVar:  "ERST_LOG_LEVEL",
			Default: "info",
			SetValue: func(raw string) error {
				if raw == "" {
					raw = "info"
				}
				cfg.LogLevel = raw
				return nil
			},
		},
		{
			Name:    "no-cache",
			EnvVar:  "ERST_NO_CACHE",
			Default: "",
			SetValue: func(raw string) error {
				cfg.NoCache = raw != "" && raw != "0" && raw != "false"
				return nil
			},
		},
		{
			Name:    "cache-dir",
			EnvVar:  "ERST_CACHE_DIR",
			Default: "",
			SetValue: func(raw string) error {
				if raw != "" {
					cfg.CacheDir = raw
				}
				return nil
			},
		},
	}

	for _, opt := range opts {
		raw, ok := os.LookupEnv(opt.EnvVar)
		if !ok {
			raw = opt.Default
		}
		if err := opt.SetValue(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", opt.Name, err)
		}
	}

	return cfg, nil
}

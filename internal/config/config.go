// Package config loads handoff's runtime configuration from the
// process environment and an optional YAML file, the way the teacher
// threads a typed config struct through its plugins.
package config

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration surface.
type Config struct {
	LogFormat    string `env:"HANDOFF_LOG_FORMAT" yaml:"logFormat"`
	DefaultAgent string `env:"HANDOFF_DEFAULT_AGENT" yaml:"defaultAgent"`
	PollInterval int    `env:"HANDOFF_POLL_INTERVAL_SECONDS" yaml:"pollIntervalSeconds"`
	ConfigDir    string `env:"HANDOFF_CONFIG_DIR" yaml:"-"`
}

// Defaults returns the configuration used when no file or environment
// variable overrides a field.
func Defaults() Config {
	return Config{
		LogFormat:    "text",
		PollInterval: 30,
	}
}

// ConfigPath returns the default location of the optional YAML
// override file: ~/.config/handoff/config.yaml (or $HANDOFF_CONFIG_DIR
// when set).
func ConfigPath() string {
	if dir := os.Getenv("HANDOFF_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "handoff", "config.yaml")
}

// Load builds a Config by layering: built-in defaults, then the YAML
// file at ConfigPath() if present, then environment variables (which
// always win). A missing or unreadable file is silently skipped; a
// file that does not parse as YAML, or an environment value that does
// not parse, is returned as an error.
func Load() (Config, error) {
	cfg := Defaults()

	if path := ConfigPath(); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

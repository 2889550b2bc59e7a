package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/outcomes-lookup/config.yaml"

// Config holds all lookup tool configuration. Values resolve in three
// layers: built-in defaults, then the YAML file, then OUTCOMES_LOOKUP_*
// environment variables.
type Config struct {
	DSN                 string        `yaml:"dsn" env:"OUTCOMES_LOOKUP_DSN"`
	Table               string        `yaml:"table" env:"OUTCOMES_LOOKUP_TABLE"`
	DialTimeoutSeconds  int           `yaml:"dial_timeout_seconds" env:"OUTCOMES_LOOKUP_DIAL_TIMEOUT_SECONDS"`
	QueryTimeoutSeconds int           `yaml:"query_timeout_seconds" env:"OUTCOMES_LOOKUP_QUERY_TIMEOUT_SECONDS"`
	Logging             LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"OUTCOMES_LOOKUP_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"OUTCOMES_LOOKUP_LOG_PRETTY"`
}

// DialTimeout returns the connect timeout as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// QueryTimeout returns the per-lookup time limit, zero meaning none.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Load reads a YAML config file at path, merges it over the defaults,
// and applies environment overrides. Returns an error if the file
// cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return applyEnv(cfg)
}

// LoadDefault resolves configuration when no --config flag is given:
// the default file is merged when it exists, otherwise defaults plus
// environment overrides apply.
func LoadDefault() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return applyEnv(DefaultConfig())
}

// applyEnv overlays OUTCOMES_LOOKUP_* environment variables, which win
// over both defaults and the file.
func applyEnv(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

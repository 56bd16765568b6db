// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the environment variable consulted when no
// --config flag is given.
const EnvironmentVariable = "MATRIXBOT_CONFIG"

// Config is the complete matrixbot configuration.
type Config struct {
	// LoginFile is the JSON file holding homeserver, user, device and
	// access token. Written by --login.
	LoginFile string `yaml:"login_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Control ControlConfig `yaml:"control"`
	Sync    SyncConfig    `yaml:"sync"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ControlConfig configures the local control socket.
type ControlConfig struct {
	// Socket is the Unix socket path. A leading '@' selects the Linux
	// abstract namespace. Empty disables the control socket.
	Socket string `yaml:"socket"`

	// MaxFrameSize bounds a single command frame in bytes.
	MaxFrameSize uint32 `yaml:"max_frame_size"`

	// HistoryPageSize is the number of events fetched when purging a
	// user's messages.
	HistoryPageSize int `yaml:"history_page_size"`

	// RedactionReason is attached to every purge redaction.
	RedactionReason string `yaml:"redaction_reason"`

	// RedactionsPerSecond limits purge redactions. Zero means no limit.
	RedactionsPerSecond float64 `yaml:"redactions_per_second"`

	// RedactionBurst is the limiter burst. Ignored without a rate.
	RedactionBurst int `yaml:"redaction_burst"`
}

// SyncConfig configures the /sync long-poll loop.
type SyncConfig struct {
	// Timeout is the server-side long-poll timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxBackoff caps the retry delay after failed syncs.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is a TCP address for /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used for any value the file leaves
// unset.
func Default() *Config {
	return &Config{
		LoginFile: "login.json",
		LogLevel:  "info",
		Control: ControlConfig{
			MaxFrameSize:    1 << 20,
			HistoryPageSize: 10,
			RedactionReason: "spam",
			RedactionBurst:  1,
		},
		Sync: SyncConfig{
			Timeout:    600 * time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// Load loads the file named by the MATRIXBOT_CONFIG environment
// variable, or returns [Default] when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of [Default].
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data on top of [Default], expands
// variables in path values, and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.LoginFile == "" {
		errs = append(errs, errors.New("login_file is required"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel))
	}
	if c.Control.MaxFrameSize == 0 {
		errs = append(errs, errors.New("control.max_frame_size must be positive"))
	}
	if c.Control.HistoryPageSize <= 0 {
		errs = append(errs, errors.New("control.history_page_size must be positive"))
	}
	if c.Control.RedactionsPerSecond < 0 {
		errs = append(errs, errors.New("control.redactions_per_second must not be negative"))
	}
	if c.Control.RedactionsPerSecond > 0 && c.Control.RedactionBurst < 1 {
		errs = append(errs, errors.New("control.redaction_burst must be at least 1"))
	}
	if c.Sync.Timeout < 0 {
		errs = append(errs, errors.New("sync.timeout must not be negative"))
	}
	if c.Sync.MaxBackoff < time.Second {
		errs = append(errs, errors.New("sync.max_backoff must be at least 1s"))
	}

	return errors.Join(errs...)
}

func (c *Config) expandVariables() {
	c.LoginFile = expandVars(c.LoginFile)
	c.Control.Socket = expandVars(c.Control.Socket)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

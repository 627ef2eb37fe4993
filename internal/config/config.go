// Package config loads the daemon configuration file for supervisord and
// watchdogd.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/context-cleaner/supervise-go/internal/endpoint"
)

// Config is the daemon-side configuration. Every field has a usable
// default; a missing config file yields the defaults outright.
type Config struct {
	// Endpoint is the socket path (or pipe name) the supervisor serves on.
	Endpoint string `yaml:"endpoint,omitempty"`

	// AuthToken protects the control channel when non-empty. The
	// CONTEXT_CLEANER_SUPERVISOR_TOKEN environment variable overrides it.
	AuthToken string `yaml:"auth_token,omitempty"`

	// MaxConnections is the supervisor's admission ceiling.
	MaxConnections int `yaml:"max_connections,omitempty"`

	// RegistryPath locates the process-registry file.
	RegistryPath string `yaml:"registry_path,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	Heartbeat HeartbeatConfig `yaml:"heartbeat,omitempty"`
	Watchdog  WatchdogConfig  `yaml:"watchdog,omitempty"`
}

// HeartbeatConfig tunes the supervisor's liveness advertisement.
type HeartbeatConfig struct {
	// TimeoutSeconds is the validity window written to the registry.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// IntervalSeconds is the refresh cadence; zero derives it from the
	// timeout.
	IntervalSeconds int `yaml:"interval_seconds,omitempty"`
}

// WatchdogConfig tunes the staleness detector.
type WatchdogConfig struct {
	PollIntervalSeconds   int  `yaml:"poll_interval_seconds,omitempty"`
	StaleGraceSeconds     int  `yaml:"stale_grace_seconds,omitempty"`
	RestartBackoffSeconds int  `yaml:"restart_backoff_seconds,omitempty"`
	MaxRestartAttempts    int  `yaml:"max_restart_attempts,omitempty"`
	RestartOnMissingEntry bool `yaml:"restart_on_missing_entry,omitempty"`

	// RestartCommand is what watchdogd execs to bring the supervisor
	// back, argv style.
	RestartCommand []string `yaml:"restart_command,omitempty"`
}

// Load reads the YAML file at path and fills in defaults. An empty path or
// missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)

		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = endpoint.Default()
	}

	if c.MaxConnections < 1 {
		c.MaxConnections = 10
	}

	if c.RegistryPath == "" {
		c.RegistryPath = filepath.Join(filepath.Dir(c.Endpoint), "processes.json")
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Heartbeat.TimeoutSeconds < 1 {
		c.Heartbeat.TimeoutSeconds = 30
	}

	if c.Watchdog.PollIntervalSeconds < 1 {
		c.Watchdog.PollIntervalSeconds = 5
	}

	if c.Watchdog.StaleGraceSeconds < 1 {
		c.Watchdog.StaleGraceSeconds = 5
	}

	if c.Watchdog.RestartBackoffSeconds < 1 {
		c.Watchdog.RestartBackoffSeconds = 15
	}

	if c.Watchdog.MaxRestartAttempts < 1 {
		c.Watchdog.MaxRestartAttempts = 3
	}
}

func (c *Config) applyEnv() {
	if token := endpoint.TokenFromEnv(); token != "" {
		c.AuthToken = token
	}
}

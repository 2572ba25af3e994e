// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// graphwatch.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.graphwatch/config.toml
//   - ~/.graphwatch/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/graphwatch/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete graphwatch configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Server is the graph hub connection configuration
	Server ServerConfig `toml:"server" json:"server"`

	// Stream tunes the WebSocket client
	Stream StreamConfig `toml:"stream" json:"stream"`

	// Metrics tunes the aggregator
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`

	// Monitor configures the terminal dashboard
	Monitor MonitorConfig `toml:"monitor" json:"monitor"`

	// Recording configures session capture
	Recording RecordingConfig `toml:"recording" json:"recording"`
}

// ServerConfig identifies the graph hub.
type ServerConfig struct {
	// BaseURL is the hub base URL (http(s):// or ws(s)://); the stream
	// endpoint path is appended by the client
	BaseURL string `toml:"base_url" json:"base_url"`
	// AuthToken is sent as an Authorization bearer header when set
	AuthToken string `toml:"auth_token" json:"auth_token"`
}

// StreamConfig tunes the reconnecting WebSocket client.
type StreamConfig struct {
	// FlushIntervalMs is the update batching cadence in milliseconds
	FlushIntervalMs int `toml:"flush_interval_ms" json:"flush_interval_ms"`
	// PingIntervalSecs is the keep-alive cadence in seconds
	PingIntervalSecs int `toml:"ping_interval_secs" json:"ping_interval_secs"`
	// ConnectTimeoutSecs bounds one dial attempt in seconds
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
	// MaxReconnectAttempts is the retry budget before terminal failure
	MaxReconnectAttempts int `toml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
}

// FlushInterval returns the batching cadence as a duration.
func (s StreamConfig) FlushInterval() time.Duration {
	return time.Duration(s.FlushIntervalMs) * time.Millisecond
}

// PingInterval returns the keep-alive cadence as a duration.
func (s StreamConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalSecs) * time.Second
}

// ConnectTimeout returns the dial bound as a duration.
func (s StreamConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSecs) * time.Second
}

// MetricsConfig tunes the metrics aggregator.
type MetricsConfig struct {
	// SampleIntervalSecs is the aggregation cadence in seconds
	SampleIntervalSecs int `toml:"sample_interval_secs" json:"sample_interval_secs"`
	// HistorySize bounds each rolling history buffer
	HistorySize int `toml:"history_size" json:"history_size"`
	// TrendWindow is the samples-per-window for trend derivation
	TrendWindow int `toml:"trend_window" json:"trend_window"`
}

// SampleInterval returns the aggregation cadence as a duration.
func (m MetricsConfig) SampleInterval() time.Duration {
	return time.Duration(m.SampleIntervalSecs) * time.Second
}

// MonitorConfig configures the terminal dashboard.
type MonitorConfig struct {
	// MetricsListenAddr, when set, serves Prometheus /metrics on this
	// address while the dashboard runs (e.g. "127.0.0.1:9477")
	MetricsListenAddr string `toml:"metrics_listen_addr" json:"metrics_listen_addr"`
	// Theme is the dashboard theme: "dark", "light"
	Theme string `toml:"theme" json:"theme"`
}

// RecordingConfig configures session capture.
type RecordingConfig struct {
	// Enabled turns on session recording
	Enabled bool `toml:"enabled" json:"enabled"`
	// Dir is the recording directory (empty = ~/.graphwatch/sessions)
	Dir string `toml:"dir" json:"dir"`
	// MaxSessions bounds retained recordings; older sessions are pruned
	MaxSessions int `toml:"max_sessions" json:"max_sessions"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:   "http://127.0.0.1:8420",
			AuthToken: "",
		},

		Stream: StreamConfig{
			FlushIntervalMs:      100,
			PingIntervalSecs:     30,
			ConnectTimeoutSecs:   10,
			MaxReconnectAttempts: 10,
		},

		Metrics: MetricsConfig{
			SampleIntervalSecs: 2,
			HistorySize:        100,
			TrendWindow:        10,
		},

		Monitor: MonitorConfig{
			MetricsListenAddr: "",
			Theme:             "dark",
		},

		Recording: RecordingConfig{
			Enabled:     false,
			Dir:         "",
			MaxSessions: 20,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the graphwatch configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".graphwatch"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// SessionsDir returns the effective recording directory.
func (c *Config) SessionsDir() (string, error) {
	if c.Recording.Dir != "" {
		return c.Recording.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect
// the auth token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	// Best-effort .env for local development; env vars win either way
	_ = godotenv.Load()

	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Defaults (with any load error for informational purposes)
	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// finishLoad applies env overrides, fills defaults, and validates.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems; warn and continue
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = defaults.Server.BaseURL
	}

	if cfg.Stream.FlushIntervalMs <= 0 {
		cfg.Stream.FlushIntervalMs = defaults.Stream.FlushIntervalMs
	}
	if cfg.Stream.PingIntervalSecs <= 0 {
		cfg.Stream.PingIntervalSecs = defaults.Stream.PingIntervalSecs
	}
	if cfg.Stream.ConnectTimeoutSecs <= 0 {
		cfg.Stream.ConnectTimeoutSecs = defaults.Stream.ConnectTimeoutSecs
	}
	if cfg.Stream.MaxReconnectAttempts <= 0 {
		cfg.Stream.MaxReconnectAttempts = defaults.Stream.MaxReconnectAttempts
	}

	if cfg.Metrics.SampleIntervalSecs <= 0 {
		cfg.Metrics.SampleIntervalSecs = defaults.Metrics.SampleIntervalSecs
	}
	if cfg.Metrics.HistorySize <= 0 {
		cfg.Metrics.HistorySize = defaults.Metrics.HistorySize
	}
	if cfg.Metrics.TrendWindow <= 0 {
		cfg.Metrics.TrendWindow = defaults.Metrics.TrendWindow
	}

	if cfg.Monitor.Theme == "" {
		cfg.Monitor.Theme = defaults.Monitor.Theme
	}

	if cfg.Recording.MaxSessions <= 0 {
		cfg.Recording.MaxSessions = defaults.Recording.MaxSessions
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies GRAPHWATCH_* environment variables on top of
// the loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GRAPHWATCH_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("GRAPHWATCH_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}

	envInt("GRAPHWATCH_FLUSH_INTERVAL_MS", &c.Stream.FlushIntervalMs)
	envInt("GRAPHWATCH_PING_INTERVAL_SECS", &c.Stream.PingIntervalSecs)
	envInt("GRAPHWATCH_CONNECT_TIMEOUT_SECS", &c.Stream.ConnectTimeoutSecs)
	envInt("GRAPHWATCH_MAX_RECONNECT_ATTEMPTS", &c.Stream.MaxReconnectAttempts)

	envInt("GRAPHWATCH_SAMPLE_INTERVAL_SECS", &c.Metrics.SampleIntervalSecs)
	envInt("GRAPHWATCH_HISTORY_SIZE", &c.Metrics.HistorySize)
	envInt("GRAPHWATCH_TREND_WINDOW", &c.Metrics.TrendWindow)

	if v := os.Getenv("GRAPHWATCH_METRICS_LISTEN"); v != "" {
		c.Monitor.MetricsListenAddr = v
	}

	if v := os.Getenv("GRAPHWATCH_RECORDING"); v != "" {
		c.Recording.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GRAPHWATCH_RECORDING_DIR"); v != "" {
		c.Recording.Dir = v
	}
	envInt("GRAPHWATCH_MAX_SESSIONS", &c.Recording.MaxSessions)
}

// envInt overrides dst with the named env var when it parses as an int.
func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: not an integer\n", name, v)
		return
	}
	*dst = n
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write
// only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# graphwatch configuration file")
	fmt.Fprintln(file, "# Generated by graphwatch - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Server
	if c.Server.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: "base URL is required",
		})
	} else {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.base_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else {
			switch u.Scheme {
			case "http", "https", "ws", "wss":
			default:
				errs = append(errs, ValidationError{
					Field:   "server.base_url",
					Message: fmt.Sprintf("invalid scheme '%s', must be one of: http, https, ws, wss", u.Scheme),
				})
			}
		}
	}

	// Stream: extreme flush cadences flood or starve the consumer
	if c.Stream.FlushIntervalMs < 10 || c.Stream.FlushIntervalMs > 10000 {
		errs = append(errs, ValidationError{
			Field:   "stream.flush_interval_ms",
			Message: fmt.Sprintf("must be in range 10-10000, got %d", c.Stream.FlushIntervalMs),
		})
	}
	if c.Stream.MaxReconnectAttempts > 100 {
		errs = append(errs, ValidationError{
			Field:   "stream.max_reconnect_attempts",
			Message: fmt.Sprintf("must be at most 100, got %d", c.Stream.MaxReconnectAttempts),
		})
	}

	// Metrics: trend needs two full windows inside the buffer
	if c.Metrics.TrendWindow*2 > c.Metrics.HistorySize {
		errs = append(errs, ValidationError{
			Field:   "metrics.trend_window",
			Message: fmt.Sprintf("2*trend_window (%d) exceeds history_size (%d)", c.Metrics.TrendWindow*2, c.Metrics.HistorySize),
		})
	}

	// Monitor
	if c.Monitor.MetricsListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.Monitor.MetricsListenAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "monitor.metrics_listen_addr",
				Message: fmt.Sprintf("invalid listen address: %v", err),
			})
		}
	}
	if theme := strings.ToLower(c.Monitor.Theme); theme != "dark" && theme != "light" {
		errs = append(errs, ValidationError{
			Field:   "monitor.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light", c.Monitor.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

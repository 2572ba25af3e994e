// json_output.go - JSON output support for scripting and automation.
//
// Provides a standardized JSON output format for all CLI commands so
// graphwatch can be driven from scripts and CI pipelines.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
// Human-readable messages should go to stderr when JSON mode is enabled.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// PrintCompact outputs the JSON response without indentation.
// Useful for piping to other tools or log aggregation.
func (r *JSONResponse) PrintCompact() error {
	return json.NewEncoder(os.Stdout).Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// OutputJSON is a helper function that outputs either JSON or runs a normal handler.
// If jsonMode is true, it outputs JSON and handles errors. Otherwise it runs the handler.
func OutputJSON(jsonMode bool, command string, handler func() (interface{}, error)) error {
	if !jsonMode {
		_, err := handler()
		return err
	}

	data, err := handler()
	if err != nil {
		resp := NewJSONErrorResponse(command, err)
		resp.Print()
		return err
	}

	resp := NewJSONResponse(command, data)
	return resp.Print()
}

// StderrPrint prints a message to stderr (for human-readable output in JSON mode).
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// StderrPrintln prints a line to stderr (for human-readable output in JSON mode).
func StderrPrintln(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// StatusData represents the data returned by the status command.
type StatusData struct {
	Connection StatusConnectionInfo `json:"connection"`
	Stream     StatusStreamInfo     `json:"stream"`
}

// StatusConnectionInfo describes the connection attempt made by the
// status command.
type StatusConnectionInfo struct {
	ServerURL string  `json:"server_url"`
	State     string  `json:"state"`
	Reachable bool    `json:"reachable"`
	RTTMs     float64 `json:"rtt_ms,omitempty"`
	Attempts  int     `json:"attempts,omitempty"`
	LastError string  `json:"last_error,omitempty"`
}

// StatusStreamInfo describes the stream configuration in effect.
type StatusStreamInfo struct {
	FlushIntervalMs      int  `json:"flush_interval_ms"`
	PingIntervalSecs     int  `json:"ping_interval_secs"`
	ConnectTimeoutSecs   int  `json:"connect_timeout_secs"`
	MaxReconnectAttempts int  `json:"max_reconnect_attempts"`
	TokenConfigured      bool `json:"token_configured"`
}

// ConfigData represents the data returned by the config show command.
type ConfigData struct {
	Server    ConfigServerInfo    `json:"server"`
	Stream    ConfigStreamInfo    `json:"stream"`
	Metrics   ConfigMetricsInfo   `json:"metrics"`
	Monitor   ConfigMonitorInfo   `json:"monitor"`
	Recording ConfigRecordingInfo `json:"recording"`
	Path      string              `json:"config_path"`
}

// ConfigServerInfo contains server configuration (token masked).
type ConfigServerInfo struct {
	BaseURL  string `json:"base_url"`
	TokenSet bool   `json:"token_configured"`
}

// ConfigStreamInfo contains stream tuning configuration.
type ConfigStreamInfo struct {
	FlushIntervalMs      int `json:"flush_interval_ms"`
	PingIntervalSecs     int `json:"ping_interval_secs"`
	ConnectTimeoutSecs   int `json:"connect_timeout_secs"`
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`
}

// ConfigMetricsInfo contains metrics aggregation configuration.
type ConfigMetricsInfo struct {
	SampleIntervalSecs int `json:"sample_interval_secs"`
	HistorySize        int `json:"history_size"`
	TrendWindow        int `json:"trend_window"`
}

// ConfigMonitorInfo contains dashboard configuration.
type ConfigMonitorInfo struct {
	MetricsListenAddr string `json:"metrics_listen_addr,omitempty"`
	Theme             string `json:"theme"`
}

// ConfigRecordingInfo contains session recording configuration.
type ConfigRecordingInfo struct {
	Enabled     bool   `json:"enabled"`
	Dir         string `json:"dir,omitempty"`
	MaxSessions int    `json:"max_sessions"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// SessionListData represents the data returned by "sessions list".
type SessionListData struct {
	Sessions []SessionListEntry `json:"sessions"`
	Count    int                `json:"count"`
}

// SessionListEntry is one session in a list response.
type SessionListEntry struct {
	ID            string `json:"id"`
	ServerURL     string `json:"server_url"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at,omitempty"`
	EventCount    int    `json:"event_count"`
	SnapshotCount int    `json:"snapshot_count"`
}

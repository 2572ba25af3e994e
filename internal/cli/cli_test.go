// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/jeranaias/graphwatch/internal/config"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"export", "--format", "md"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("format") != "md" {
					t.Errorf("Flag(format) = %q, want %q", p.Flag("format"), "md")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"export", "--output=sess.md"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("output") != "sess.md" {
					t.Errorf("Flag(output) = %q, want %q", p.Flag("output"), "sess.md")
				}
			},
		},
		{
			name:    "boolean flag",
			args:    []string{"delete", "sess_abc", "--confirm"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be true")
				}
				if p.Positional(1) != "sess_abc" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "sess_abc")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"query", "MATCH", "(n)", "RETURN", "n"},
			wantSub: "query",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 5 {
					t.Errorf("PositionalCount() = %d, want 5", p.PositionalCount())
				}
				joined := strings.Join(p.PositionalFrom(1), " ")
				if joined != "MATCH (n) RETURN n" {
					t.Errorf("PositionalFrom(1) joined = %q", joined)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		flagName   string
		defaultVal int
		want       int
	}{
		{
			name:       "flag present",
			args:       []string{"cmd", "--limit", "10"},
			flagName:   "limit",
			defaultVal: 5,
			want:       10,
		},
		{
			name:       "flag missing uses default",
			args:       []string{"cmd"},
			flagName:   "limit",
			defaultVal: 5,
			want:       5,
		},
		{
			name:       "invalid int uses default",
			args:       []string{"cmd", "--limit", "abc"},
			flagName:   "limit",
			defaultVal: 5,
			want:       5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			got := parser.FlagIntOrDefault(tt.flagName, tt.defaultVal)
			if got != tt.want {
				t.Errorf("FlagIntOrDefault(%q, %d) = %d, want %d", tt.flagName, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestArgParser_HasFlag(t *testing.T) {
	parser := NewArgParser([]string{"cmd", "--confirm", "--format", "md"})

	if !parser.HasFlag("confirm") {
		t.Error("HasFlag(confirm) should be true")
	}
	if !parser.HasFlag("format") {
		t.Error("HasFlag(format) should be true")
	}
	if parser.HasFlag("nonexistent") {
		t.Error("HasFlag(nonexistent) should be false")
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	parser := NewArgParser([]string{})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if parser.PositionalCount() != 0 {
		t.Errorf("PositionalCount() = %d, want 0", parser.PositionalCount())
	}
}

// =============================================================================
// PARSE BOOL STRING TESTS
// =============================================================================

func TestParseBoolString(t *testing.T) {
	trueValues := []string{"true", "TRUE", "yes", "y", "1", "on"}
	falseValues := []string{"false", "FALSE", "no", "n", "0", "off"}

	for _, v := range trueValues {
		t.Run("true_"+v, func(t *testing.T) {
			got, err := ParseBoolString(v)
			if err != nil {
				t.Errorf("ParseBoolString(%q) error = %v", v, err)
			}
			if !got {
				t.Errorf("ParseBoolString(%q) = false, want true", v)
			}
		})
	}

	for _, v := range falseValues {
		t.Run("false_"+v, func(t *testing.T) {
			got, err := ParseBoolString(v)
			if err != nil {
				t.Errorf("ParseBoolString(%q) error = %v", v, err)
			}
			if got {
				t.Errorf("ParseBoolString(%q) = true, want false", v)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseBoolString("maybe"); err == nil {
			t.Error("ParseBoolString(maybe) should error")
		}
	})
}

// =============================================================================
// INTEGRATION-STYLE TESTS (testing Parse() with os.Args simulation)
// =============================================================================

func TestParse_Integration(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no args defaults to monitor",
			args:        []string{"graphwatch"},
			wantCommand: CmdMonitor,
		},
		{
			name:        "monitor with server override",
			args:        []string{"graphwatch", "--server", "http://hub.local:8420", "monitor"},
			wantCommand: CmdMonitor,
			validate: func(t *testing.T, a Args) {
				if a.ServerURL != "http://hub.local:8420" {
					t.Errorf("ServerURL = %q", a.ServerURL)
				}
			},
		},
		{
			name:        "console command",
			args:        []string{"graphwatch", "console", "--record"},
			wantCommand: CmdConsole,
			validate: func(t *testing.T, a Args) {
				if !a.Record {
					t.Error("Record should be true")
				}
			},
		},
		{
			name:        "status alias",
			args:        []string{"graphwatch", "s"},
			wantCommand: CmdStatus,
		},
		{
			name:        "status with json",
			args:        []string{"graphwatch", "status", "--json"},
			wantCommand: CmdStatus,
			validate: func(t *testing.T, a Args) {
				if !a.JSON {
					t.Error("JSON should be true")
				}
			},
		},
		{
			name:        "config set",
			args:        []string{"graphwatch", "config", "set", "base_url", "http://hub:9"},
			wantCommand: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "set" || a.ConfigKey != "base_url" || a.ConfigVal != "http://hub:9" {
					t.Errorf("config args = %q %q %q", a.Subcommand, a.ConfigKey, a.ConfigVal)
				}
			},
		},
		{
			name:        "sessions subcommand",
			args:        []string{"graphwatch", "sessions", "export", "0", "--format", "md"},
			wantCommand: CmdSessions,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "export" {
					t.Errorf("Subcommand = %q, want export", a.Subcommand)
				}
				if len(a.Raw) != 4 {
					t.Errorf("Raw = %v, want 4 args", a.Raw)
				}
			},
		},
		{
			name:        "token with equals",
			args:        []string{"graphwatch", "--token=sekrit", "status"},
			wantCommand: CmdStatus,
			validate: func(t *testing.T, a Args) {
				if a.AuthToken != "sekrit" {
					t.Errorf("AuthToken = %q", a.AuthToken)
				}
			},
		},
		{
			name:        "version flag",
			args:        []string{"graphwatch", "--version"},
			wantCommand: CmdVersion,
		},
		{
			name:        "help command",
			args:        []string{"graphwatch", "help"},
			wantCommand: CmdHelp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			cmd, args := Parse()

			if cmd != tt.wantCommand {
				t.Errorf("Command = %v, want %v", cmd, tt.wantCommand)
			}

			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

// =============================================================================
// CONFIG KEY MAPPING TESTS (config.go)
// =============================================================================

func TestApplyConfigKey(t *testing.T) {
	cfg := config.Default()

	if err := applyConfigKey(cfg, "flush_interval_ms", "50"); err != nil {
		t.Fatalf("applyConfigKey failed: %v", err)
	}
	if cfg.Stream.FlushIntervalMs != 50 {
		t.Errorf("FlushIntervalMs = %d, want 50", cfg.Stream.FlushIntervalMs)
	}

	if err := applyConfigKey(cfg, "recording", "yes"); err != nil {
		t.Fatalf("applyConfigKey failed: %v", err)
	}
	if !cfg.Recording.Enabled {
		t.Error("Recording.Enabled should be true")
	}

	if err := applyConfigKey(cfg, "base_url", "http://hub:1"); err != nil {
		t.Fatalf("applyConfigKey failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://hub:1" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}

	err := applyConfigKey(cfg, "no_such_key", "1")
	if !IsNotFoundError(err) {
		t.Errorf("expected NotFoundError for unknown key, got %v", err)
	}

	err = applyConfigKey(cfg, "trend_window", "abc")
	if !IsValidationError(err) {
		t.Errorf("expected ValidationError for bad int, got %v", err)
	}
}

// =============================================================================
// ERROR HANDLING TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("format", "xml", "unsupported"), ExitUsageError},
		{"not found", NewNotFoundError("session", "sess_x"), ExitNotFoundError},
		{"config", WrapError(os.ErrNotExist, "failed to load configuration"), ExitConfigError},
		{"timeout", WrapError(os.ErrDeadlineExceeded, "request timed out"), ExitTimeoutError},
		{"generic", os.ErrPermission, ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// =============================================================================
// TEXT WRAPPING TESTS (terminal.go)
// =============================================================================

func TestWrapText(t *testing.T) {
	wrapped := WrapText("aaa bbb ccc ddd eee", 12)
	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > 12 {
			t.Errorf("line %q exceeds width", line)
		}
	}

	// Existing newlines are preserved
	wrapped = WrapText("one\ntwo", 40)
	if wrapped != "one\ntwo" {
		t.Errorf("WrapText changed short lines: %q", wrapped)
	}
}

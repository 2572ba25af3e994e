// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command handlers for graphwatch.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdMonitor Command = iota // Full-screen dashboard (default)
	CmdConsole                // Interactive console (REPL)
	CmdStatus                 // One-shot connection status check
	CmdConfig                 // Configuration management
	CmdSessions               // Recorded session management
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool // Output in JSON format

	// Server overrides (take precedence over config file and env)
	ServerURL string
	AuthToken string

	// ConfigPath overrides the default config file location
	ConfigPath string

	// Record enables session recording for monitor/console
	Record bool

	// Command-specific
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `graphwatch - live graph stream monitor

Graphwatch connects to a graph hub's WebSocket stream and turns the
raw update firehose into something a human can watch: a batched live
dashboard, an interactive console, and recorded sessions you can
replay and export.

Usage:
  graphwatch                     Start the dashboard (default)
  graphwatch monitor             Start the dashboard explicitly
  graphwatch console             Interactive console (REPL)
  graphwatch status, s           One-shot connection check
  graphwatch config [show|set|path]  Configuration
  graphwatch sessions [subcommand]   Recorded session management
  graphwatch version             Show version information
  graphwatch help                Show this help

Session Commands:
  graphwatch sessions list           List recorded sessions
  graphwatch sessions show <id|N>    Show session details (N = index, 0 newest)
  graphwatch sessions export <id>    Export a session
    --format json|md                 Export format (default: md)
    --output FILE                    Export to file (default: stdout)
  graphwatch sessions delete <id>    Delete a session
    --confirm                        Required confirmation flag
  graphwatch sessions clear          Delete all sessions
    --confirm                        Required confirmation flag

Config Commands:
  graphwatch config show             Show current configuration
  graphwatch config set <key> <val>  Set a configuration value
  graphwatch config path             Print the config file path

  Settable keys: base_url, auth_token, flush_interval_ms,
    ping_interval_secs, connect_timeout_secs, max_reconnect_attempts,
    sample_interval_secs, history_size, trend_window, metrics_listen,
    theme, recording, recording_dir, max_sessions

Global Flags:
  --server URL    Override the hub base URL
  --token TOKEN   Override the bearer token
  --config PATH   Use an alternate config file
  --record        Record the session (monitor/console)
  -q, --quiet     Minimal output
  -v, --verbose   Debug output
  --json          Output in JSON format

Environment:
  GRAPHWATCH_BASE_URL, GRAPHWATCH_AUTH_TOKEN and friends override the
  config file; flags override both. A .env file in the working
  directory is loaded if present.

Examples:
  graphwatch --server http://hub.local:8420        Watch a remote hub
  graphwatch console --record                      Record a console session
  graphwatch status --json                         Machine-readable check
  graphwatch sessions export 0 --format md         Export newest session
  graphwatch config set flush_interval_ms 50       Faster batching

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("graphwatch version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	args := os.Args[1:]

	// Parse global flags first
	remaining, parsedArgs := parseGlobalFlags(args)

	// If no remaining args, default to the dashboard
	if len(remaining) == 0 {
		return CmdMonitor, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "monitor", "watch":
		return CmdMonitor, parsedArgs

	case "console", "repl":
		return CmdConsole, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "session", "sessions":
		// Detailed argument parsing is done in session_cmd.go
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdSessions, parsedArgs

	case "version", "-v", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--record":
			parsedArgs.Record = true
		case "--server":
			if i+1 < len(args) {
				i++
				parsedArgs.ServerURL = args[i]
			}
		case "--token":
			if i+1 < len(args) {
				i++
				parsedArgs.AuthToken = args[i]
			}
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--server="):
				parsedArgs.ServerURL = strings.TrimPrefix(arg, "--server=")
			case strings.HasPrefix(arg, "--token="):
				parsedArgs.AuthToken = strings.TrimPrefix(arg, "--token=")
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = remaining[0]
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = remaining[2]
		}
	}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// NOTE: HandleStatus is implemented in status.go
// NOTE: HandleConfig is implemented in config.go
// NOTE: HandleSessions is implemented in session_cmd.go

// HandleVersion handles the "version" command.
func HandleVersion(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		resp := NewJSONResponse("version", data)
		resp.Print()
		return
	}
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}

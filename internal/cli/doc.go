// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and command handlers for
// graphwatch.
//
// The package owns everything between os.Args and the wired-up
// application: flag parsing, subcommand dispatch, terminal-aware
// styling, JSON output for scripting, and the one-shot commands
// (status, config, sessions, version). The long-running modes
// (monitor, console) are constructed in main and live in their own
// packages; this package only selects them.
//
// # Key Types
//
//   - Command: Enumeration of top-level commands
//   - Args: Parsed global flags and command arguments
//   - ArgParser: Shared subcommand/flag parser
//   - JSONResponse: Standardized --json output envelope
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdStatus:
//	    err = cli.HandleStatus(args)
//	case cli.CmdSessions:
//	    err = cli.HandleSessions(args)
//	}
//
// # Output Conventions
//
// Human-readable output goes to stdout with lipgloss styling; colors
// are disabled automatically for non-TTY output and NO_COLOR. With
// --json, commands print a single JSONResponse to stdout and any
// human-facing notes to stderr.
package cli

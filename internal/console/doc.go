// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console provides the interactive REPL mode for graphwatch.
//
// The console keeps a live stream client connected while the user
// types commands at a readline-style prompt (history, line editing via
// liner). Connection transitions and incoming update batches are
// printed asynchronously to stderr so they interleave cleanly with the
// prompt on stdout.
//
// # Key Types
//
//   - Console: The REPL; wires client subscriptions to the terminal
//
// # Commands
//
//   - status, query, subscribe, layout: outbound stream operations
//   - watch on|off: toggle echoing of incoming batches
//   - trends: metric series with windowed trend direction
//   - record start|stop, sessions: recording control
//
// # Usage
//
//	con := console.New(cfg, client, metricsSvc, store)
//	err := con.Run(args.Quiet)
//
// Command history is persisted to ~/.graphwatch/console_history.
package console

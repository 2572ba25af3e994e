// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor provides the full-screen live dashboard for graphwatch.
//
// The dashboard is a Bubble Tea program showing the connection state
// machine, stream throughput, metric series with windowed trends, and
// a scrolling event feed. Stream callbacks are bridged into the
// program with p.Send; the model itself stays single-threaded.
//
// # Key Types
//
//   - Model: Bubble Tea model (Init/Update/View)
//   - StateMsg, BatchMsg: Messages bridged from stream subscriptions
//
// # Usage
//
//	err := monitor.Run(cfg, client, metricsSvc, store)
//
// Run blocks until the user quits (q, Esc, Ctrl+C) and stops any
// active session recording on the way out.
package monitor

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sched provides a scheduled-task abstraction for deferred and
// periodic work.
//
// Ambient timers scattered across services make shutdown ordering and test
// determinism hard to reason about. Instead, every deferred action in
// graphwatch is modeled as an explicit Task registered with a Scheduler:
//
//	scheduler := sched.NewScheduler()
//	timeout := scheduler.After("connect-timeout", 10*time.Second, onTimeout)
//	ping := scheduler.Every("keep-alive", 30*time.Second, sendPing)
//
//	timeout.Cancel() // no-op if it already fired
//	scheduler.Stop() // cancels everything, waits for goroutines
//
// One-shot tasks transition Pending -> Fired (or Canceled). Repeating tasks
// transition Pending -> Running and tick until canceled. A canceled task
// never invokes its callback again, and a one-shot task whose Cancel races
// its timer executes at most one of the two outcomes.
package sched

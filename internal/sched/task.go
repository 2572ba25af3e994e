// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sched provides a scheduled-task abstraction for deferred and
// periodic work.
package sched

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a scheduled task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting for its fire time
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusRunning indicates a repeating task that is actively ticking
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusFired indicates a one-shot task that has executed
	TaskStatusFired TaskStatus = "Fired"

	// TaskStatusCanceled indicates the task was canceled before completion
	TaskStatusCanceled TaskStatus = "Canceled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Task represents a unit of deferred work registered with a Scheduler.
//
// A one-shot task fires once after its delay and transitions to Fired.
// A repeating task fires every interval until canceled. Cancel is safe to
// call from any goroutine and is a no-op once the task has reached a
// terminal state.
type Task struct {
	// ID is a unique identifier for this task
	ID string

	// Name is a short human-readable label (e.g. "connect-timeout")
	Name string

	// Interval is the repeat interval (zero for one-shot tasks)
	Interval time.Duration

	// Delay is the initial delay before the first firing
	Delay time.Duration

	// CreatedAt is when the task was registered
	CreatedAt time.Time

	// status is the current state of the task
	status TaskStatus

	// fn is the work to execute on each firing
	fn func()

	// done signals the task goroutine to stop
	done chan struct{}

	// mu protects concurrent access to the task
	mu sync.Mutex
}

// newTask creates a task in the Pending state.
func newTask(name string, delay, interval time.Duration, fn func()) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Name:      name,
		Delay:     delay,
		Interval:  interval,
		CreatedAt: time.Now(),
		status:    TaskStatusPending,
		fn:        fn,
		done:      make(chan struct{}),
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// Status returns the current task status (thread-safe).
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Cancel stops the task before (or between) firings.
// Returns true if the task was canceled, false if it had already
// fired or been canceled.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == TaskStatusFired || t.status == TaskStatusCanceled {
		return false
	}

	t.status = TaskStatusCanceled
	close(t.done)
	return true
}

// IsTerminal returns true if the task has fired or been canceled.
func (t *Task) IsTerminal() bool {
	status := t.Status()
	return status == TaskStatusFired || status == TaskStatusCanceled
}

// markRunning transitions a pending repeating task to Running.
// Returns false if the task is no longer pending.
func (t *Task) markRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskStatusPending {
		return false
	}
	t.status = TaskStatusRunning
	return true
}

// markFired transitions a one-shot task to Fired.
// Returns false if the task was canceled first; the callback must not
// run in that case.
func (t *Task) markFired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == TaskStatusCanceled {
		return false
	}
	t.status = TaskStatusFired
	return true
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sched provides a scheduled-task abstraction for deferred and
// periodic work.
package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler owns a set of scheduled tasks and their timer goroutines.
//
// Every timer in the application (connect timeouts, reconnect backoff,
// keep-alive pings, flush ticks, samplers) is registered here so that a
// single Stop() call can cancel all deferred work deterministically.
type Scheduler struct {
	// tasks tracks live tasks by ID
	tasks map[string]*Task

	// stopped prevents new tasks after Stop() is called
	stopped atomic.Bool

	// wg waits for task goroutines on Stop()
	wg sync.WaitGroup

	// mu protects concurrent access to the task map
	mu sync.Mutex
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*Task),
	}
}

// =============================================================================
// SCHEDULING
// =============================================================================

// After schedules fn to run once after delay.
// Returns the task handle, or nil if the scheduler has been stopped.
func (s *Scheduler) After(name string, delay time.Duration, fn func()) *Task {
	if s.stopped.Load() {
		return nil
	}

	task := newTask(name, delay, 0, fn)
	s.register(task)

	s.wg.Add(1)
	go s.runOnce(task)

	return task
}

// Every schedules fn to run every interval until the task is canceled.
// The first firing happens one interval from now.
// Returns the task handle, or nil if the scheduler has been stopped.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) *Task {
	if s.stopped.Load() {
		return nil
	}

	task := newTask(name, interval, interval, fn)
	s.register(task)

	s.wg.Add(1)
	go s.runRepeating(task)

	return task
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Cancel cancels the task with the given ID.
// Returns true if a live task was found and canceled.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	task, ok := s.tasks[id]
	s.mu.Unlock()

	if !ok {
		return false
	}
	return task.Cancel()
}

// Active returns the number of tasks that have not reached a terminal state.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, task := range s.tasks {
		if !task.IsTerminal() {
			count++
		}
	}
	return count
}

// Stop cancels every live task and waits for all task goroutines to exit.
// The scheduler accepts no new tasks afterwards.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)

	s.mu.Lock()
	for _, task := range s.tasks {
		task.Cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// =============================================================================
// TASK EXECUTION
// =============================================================================

// runOnce executes a one-shot task after its delay.
func (s *Scheduler) runOnce(task *Task) {
	defer s.wg.Done()
	defer s.unregister(task.ID)

	timer := time.NewTimer(task.Delay)
	defer timer.Stop()

	select {
	case <-task.done:
		return
	case <-timer.C:
		// Fire only if Cancel did not win the race
		if task.markFired() {
			task.fn()
		}
	}
}

// runRepeating executes a repeating task until it is canceled.
func (s *Scheduler) runRepeating(task *Task) {
	defer s.wg.Done()
	defer s.unregister(task.ID)

	if !task.markRunning() {
		return
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-task.done:
			return
		case <-ticker.C:
			task.fn()
		}
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

// register adds a task to the live set.
func (s *Scheduler) register(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// unregister removes a finished task from the live set.
func (s *Scheduler) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

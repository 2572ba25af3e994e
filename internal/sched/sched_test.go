// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFires(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := make(chan struct{})
	task := s.After("test", 10*time.Millisecond, func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot task did not fire")
	}

	// Status should settle to Fired
	deadline := time.Now().Add(time.Second)
	for task.Status() != TaskStatusFired {
		if time.Now().After(deadline) {
			t.Fatalf("expected status Fired, got %s", task.Status())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAfterCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Bool
	task := s.After("test", 50*time.Millisecond, func() {
		fired.Store(true)
	})

	if !task.Cancel() {
		t.Error("Cancel should return true for a pending task")
	}

	if task.Cancel() {
		t.Error("second Cancel should return false")
	}

	time.Sleep(150 * time.Millisecond)
	if fired.Load() {
		t.Error("canceled task should not fire")
	}

	if task.Status() != TaskStatusCanceled {
		t.Errorf("expected status Canceled, got %s", task.Status())
	}
}

func TestEveryRepeats(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var count atomic.Int32
	task := s.Every("tick", 10*time.Millisecond, func() {
		count.Add(1)
	})

	// Wait for at least 3 firings
	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("repeating task fired only %d times", count.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	task.Cancel()
	settled := count.Load()
	time.Sleep(50 * time.Millisecond)

	// Allow one in-flight firing that raced the cancel
	if count.Load() > settled+1 {
		t.Errorf("task kept firing after cancel: %d -> %d", settled, count.Load())
	}
}

func TestStopCancelsAll(t *testing.T) {
	s := NewScheduler()

	var fired atomic.Int32
	s.After("a", time.Hour, func() { fired.Add(1) })
	s.Every("b", time.Hour, func() { fired.Add(1) })

	if s.Active() != 2 {
		t.Errorf("expected 2 active tasks, got %d", s.Active())
	}

	s.Stop()

	if fired.Load() != 0 {
		t.Error("no task should have fired")
	}
	if s.Active() != 0 {
		t.Errorf("expected 0 active tasks after Stop, got %d", s.Active())
	}

	// Scheduler accepts no new work after Stop
	if task := s.After("late", time.Millisecond, func() { fired.Add(1) }); task != nil {
		t.Error("After should return nil after Stop")
	}
	if task := s.Every("late", time.Millisecond, func() { fired.Add(1) }); task != nil {
		t.Error("Every should return nil after Stop")
	}
}

func TestCancelByID(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	task := s.After("test", time.Hour, func() {})

	if !s.Cancel(task.ID) {
		t.Error("Cancel by ID should find the task")
	}
	if s.Cancel("no-such-id") {
		t.Error("Cancel of unknown ID should return false")
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
)

// =============================================================================
// LIVE RECORDER
// =============================================================================

// Recorder accumulates a live session in memory and persists it on Stop.
// Wire its Record* methods to the stream client's subscriptions and the
// aggregator's snapshot cadence. Safe for concurrent use.
type Recorder struct {
	store *SessionStore

	mu      sync.Mutex
	session *Session
	stopped bool
}

// NewRecorder starts a new recording against the given server.
func NewRecorder(store *SessionStore, serverURL string) *Recorder {
	return &Recorder{
		store: store,
		session: &Session{
			ID:        generateSessionID(),
			ServerURL: serverURL,
			StartedAt: time.Now(),
		},
	}
}

// ID returns the session ID being recorded.
func (r *Recorder) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.ID
}

// EventCount returns the number of recorded timeline entries.
func (r *Recorder) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.session.Events)
}

// RecordBatch appends every update of a delivered batch to the timeline.
func (r *Recorder) RecordBatch(batch graphws.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	for _, u := range batch {
		r.session.Events = append(r.session.Events, Event{
			Timestamp: u.Timestamp,
			Kind:      u.Kind.String(),
			TargetID:  u.TargetID(),
		})
	}
}

// RecordState appends a connection state transition to the timeline.
func (r *Recorder) RecordState(e graphws.StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	detail := fmt.Sprintf("%s -> %s", e.Previous, e.Current)
	if e.Err != nil {
		detail += ": " + e.Err.Error()
	}
	r.session.Events = append(r.session.Events, Event{
		Timestamp: time.Now(),
		Kind:      "state",
		Detail:    detail,
	})
}

// RecordSnapshot appends a metrics snapshot.
func (r *Recorder) RecordSnapshot(snap metrics.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.session.Snapshots = append(r.session.Snapshots, snap)
}

// Stop closes the session and persists it. Idempotent; the first call
// wins and returns the saved session ID.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if r.stopped {
		id := r.session.ID
		r.mu.Unlock()
		return id, nil
	}
	r.stopped = true
	r.session.EndedAt = time.Now()
	sess := r.session
	r.mu.Unlock()

	return r.store.Save(sess)
}

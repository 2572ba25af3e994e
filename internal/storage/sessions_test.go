// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
)

func newTestStore(t *testing.T, max int) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(t.TempDir(), max)
	if err != nil {
		t.Fatalf("NewSessionStore failed: %v", err)
	}
	return store
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t, 0)

	sess := &Session{
		ServerURL: "https://hub.example.com",
		Events: []Event{
			{Timestamp: time.Now(), Kind: "node_added", TargetID: "n1"},
			{Timestamp: time.Now(), Kind: "state", Detail: "disconnected -> connecting"},
		},
	}

	id, err := store.Save(sess)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(id, "sess_") {
		t.Errorf("unexpected session ID %q", id)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ServerURL != sess.ServerURL {
		t.Errorf("server URL round trip: %q", loaded.ServerURL)
	}
	if len(loaded.Events) != 2 || loaded.Events[0].TargetID != "n1" {
		t.Errorf("events round trip: %+v", loaded.Events)
	}
}

func TestLoadMissingSession(t *testing.T) {
	store := newTestStore(t, 0)

	_, err := store.Load("sess_missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t, 0)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := store.Save(&Session{
			ID:        fmt.Sprintf("sess_%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			ServerURL: "https://hub",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(metas))
	}
	if metas[0].ID != "sess_2" || metas[2].ID != "sess_0" {
		t.Errorf("list not newest-first: %v %v %v", metas[0].ID, metas[1].ID, metas[2].ID)
	}
}

func TestEnforceLimitPrunesOldest(t *testing.T) {
	store := newTestStore(t, 2)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		_, err := store.Save(&Session{
			ID:        fmt.Sprintf("sess_%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected retention at 2 sessions, got %d", len(metas))
	}
	for _, m := range metas {
		if m.ID == "sess_0" || m.ID == "sess_1" {
			t.Errorf("oldest session %s should have been pruned", m.ID)
		}
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := newTestStore(t, 0)

	id, err := store.Save(&Session{})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second delete: expected ErrSessionNotFound, got %v", err)
	}

	store.Save(&Session{})
	store.Save(&Session{})
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	metas, _ := store.List()
	if len(metas) != 0 {
		t.Errorf("expected empty store after Clear, got %d", len(metas))
	}
}

func TestRecorderLifecycle(t *testing.T) {
	store := newTestStore(t, 0)
	rec := NewRecorder(store, "https://hub.example.com")

	rec.RecordBatch(graphws.Batch{
		{Kind: graphws.UpdateNodeAdded, Node: &graphws.GraphNode{ID: "n1"}, Timestamp: time.Now()},
		{Kind: graphws.UpdateNodeRemoved, NodeID: "n2", Timestamp: time.Now()},
	})
	rec.RecordState(graphws.StateEvent{
		Previous: graphws.StateDisconnected,
		Current:  graphws.StateConnecting,
	})
	rec.RecordSnapshot(metrics.Snapshot{TakenAt: time.Now()})

	if rec.EventCount() != 3 {
		t.Errorf("expected 3 timeline entries, got %d", rec.EventCount())
	}

	id, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	sess, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(sess.Events) != 3 {
		t.Fatalf("expected 3 events persisted, got %d", len(sess.Events))
	}
	if sess.Events[0].TargetID != "n1" || sess.Events[1].TargetID != "n2" {
		t.Errorf("update targets not recorded: %+v", sess.Events[:2])
	}
	if sess.Events[2].Kind != "state" || !strings.Contains(sess.Events[2].Detail, "connecting") {
		t.Errorf("state transition not recorded: %+v", sess.Events[2])
	}
	if len(sess.Snapshots) != 1 {
		t.Errorf("expected 1 snapshot, got %d", len(sess.Snapshots))
	}
	if sess.EndedAt.IsZero() {
		t.Error("Stop should stamp EndedAt")
	}

	// Idempotent stop, and no recording after stop
	id2, err := rec.Stop()
	if err != nil || id2 != id {
		t.Errorf("second Stop: id=%q err=%v", id2, err)
	}
	rec.RecordBatch(graphws.Batch{{Kind: graphws.UpdateNodeAdded}})
	if rec.EventCount() != 3 {
		t.Error("recording after Stop must be a no-op")
	}
}

func TestExportMarkdown(t *testing.T) {
	sess := &Session{
		ID:        "sess_export",
		ServerURL: "https://hub",
		StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Events: []Event{
			{Timestamp: time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC), Kind: "node_added", TargetID: "n1"},
		},
	}

	md := sess.ExportMarkdown()
	for _, want := range []string{"# Session sess_export", "node_added", "n1", "https://hub"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown export missing %q", want)
		}
	}
}

func TestFormatSessionList(t *testing.T) {
	out := FormatSessionList(nil)
	if out != "No sessions found." {
		t.Errorf("empty list formatting: %q", out)
	}

	out = FormatSessionList([]SessionMeta{
		{ID: "sess_abc", StartedAt: time.Now(), EventCount: 7, ServerURL: "https://hub"},
	})
	if !strings.Contains(out, "sess_abc") || !strings.Contains(out, "7") {
		t.Errorf("list formatting missing fields:\n%s", out)
	}
}

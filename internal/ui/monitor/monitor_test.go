// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/graphwatch/internal/config"
	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/sched"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	scheduler := sched.NewScheduler()
	t.Cleanup(scheduler.Stop)

	client, err := graphws.NewClient(scheduler, graphws.Options{
		BaseURL: "http://127.0.0.1:9",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(client.Close)

	return New(config.Default(), client, nil, nil)
}

func TestWindowSizeSetsDimensions(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	if m.width != 120 || m.height != 40 {
		t.Errorf("dimensions = %dx%d, want 120x40", m.width, m.height)
	}
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(t)

	for _, key := range []string{"q", "ctrl+c", "esc"} {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		if key == "q" && cmd == nil {
			t.Errorf("key %q should produce a quit command", key)
		}
	}
}

func TestStateMsgUpdatesConnection(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(StateMsg(graphws.StateEvent{
		Previous: graphws.StateConnecting,
		Current:  graphws.StateReconnecting,
		Err:      errors.New("connection refused"),
		Attempt:  3,
	}))
	m = next.(Model)

	if m.connState != graphws.StateReconnecting {
		t.Errorf("connState = %v", m.connState)
	}
	if m.attempt != 3 {
		t.Errorf("attempt = %d, want 3", m.attempt)
	}
	if m.lastErr == nil {
		t.Error("lastErr should be recorded")
	}
	if len(m.events) != 1 || m.events[0].kind != "state" {
		t.Errorf("state transition not in event feed: %+v", m.events)
	}
}

func TestBatchMsgUpdatesCounters(t *testing.T) {
	m := newTestModel(t)

	batch := graphws.Batch{
		{Kind: graphws.UpdateNodeAdded, Node: &graphws.GraphNode{ID: "n1"}, Timestamp: time.Now()},
		{Kind: graphws.UpdateEdgeRemoved, EdgeID: "e1", Timestamp: time.Now()},
	}
	next, _ := m.Update(BatchMsg(batch))
	m = next.(Model)

	if m.batches != 1 || m.updates != 2 || m.lastBatch != 2 {
		t.Errorf("counters = %d/%d/%d, want 1/2/2", m.batches, m.updates, m.lastBatch)
	}
	if len(m.events) != 2 {
		t.Fatalf("expected 2 event lines, got %d", len(m.events))
	}
	if !strings.Contains(m.events[0].text, "n1") {
		t.Errorf("event text missing target: %q", m.events[0].text)
	}
}

func TestEventBufferTrims(t *testing.T) {
	var events []eventLine
	for i := 0; i < maxEventLines+20; i++ {
		events = appendEvent(events, eventLine{text: "x"})
	}
	if len(events) != maxEventLines {
		t.Errorf("event buffer = %d, want %d", len(events), maxEventLines)
	}
}

func TestViewRendersPanels(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 32})
	m = next.(Model)
	next, _ = m.Update(StateMsg(graphws.StateEvent{
		Previous: graphws.StateDisconnected,
		Current:  graphws.StateConnecting,
	}))
	m = next.(Model)

	out := m.View()
	for _, want := range []string{"graphwatch", "Connection", "Stream", "Metrics", "Events"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewBeforeSize(t *testing.T) {
	m := newTestModel(t)
	if m.View() != "starting..." {
		t.Errorf("zero-width view = %q", m.View())
	}
}

func TestSpinnerTickAdvances(t *testing.T) {
	m := newTestModel(t)

	msg := m.spin.Tick()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		t.Error("spinner tick should schedule the next frame")
	}

	// The spinner shows while a dial or backoff is in flight
	next, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 32})
	m = next.(Model)
	next, _ = m.Update(StateMsg(graphws.StateEvent{
		Previous: graphws.StateDisconnected,
		Current:  graphws.StateConnecting,
	}))
	m = next.(Model)
	if out := m.View(); !strings.Contains(out, "CONNECTING") {
		t.Errorf("connecting state missing from view")
	}
}

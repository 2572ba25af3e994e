// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor provides the full-screen live dashboard for graphwatch.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/graphwatch/internal/config"
	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
	"github.com/jeranaias/graphwatch/internal/storage"
)

// maxEventLines bounds the recent-events panel.
const maxEventLines = 64

// refreshInterval drives the periodic metrics snapshot refresh.
const refreshInterval = time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// StateMsg carries a connection state transition into the model.
type StateMsg graphws.StateEvent

// BatchMsg carries a delivered update batch into the model.
type BatchMsg graphws.Batch

// tickMsg drives the periodic metrics refresh.
type tickMsg time.Time

// eventLine is one row in the recent-events panel.
type eventLine struct {
	at   time.Time
	kind string
	text string
	err  bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	cfg     *config.Config
	client  *graphws.Client
	metrics *metrics.Service

	// Dimensions
	width  int
	height int

	// Connection view state
	connState graphws.ConnectionState
	attempt   int
	terminal  bool
	lastErr   error

	// Stream counters since start
	batches   int64
	updates   int64
	lastBatch int

	// Recent events (newest last; trimmed to maxEventLines)
	events []eventLine

	// Latest metrics snapshot for the trends panel
	snapshot metrics.Snapshot

	// Recording
	recorder *storage.Recorder

	// UI state
	spin     spinner.Model
	showHelp bool
	started  time.Time
}

// New creates a dashboard model over an already-constructed client and
// metrics service. recorder may be nil.
func New(cfg *config.Config, client *graphws.Client, svc *metrics.Service, recorder *storage.Recorder) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warnStyle

	return Model{
		cfg:       cfg,
		client:    client,
		metrics:   svc,
		connState: client.State(),
		recorder:  recorder,
		spin:      sp,
		started:   time.Now(),
	}
}

// Init schedules the first refresh tick and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spin.Tick)
}

// tick returns the periodic refresh command.
func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "?", "h":
			m.showHelp = !m.showHelp
			return m, nil
		}
		return m, nil

	case StateMsg:
		return m.applyState(graphws.StateEvent(msg)), nil

	case BatchMsg:
		return m.applyBatch(graphws.Batch(msg)), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tickMsg:
		if m.metrics != nil {
			m.snapshot = m.metrics.Snapshot(false)
		}
		// Connection facts that change without a state event
		m.attempt = m.client.Attempts()
		m.terminal = m.client.Terminal()
		return m, tick()
	}

	return m, nil
}

// applyState folds a connection transition into the view state.
func (m Model) applyState(e graphws.StateEvent) Model {
	m.connState = e.Current
	m.attempt = e.Attempt
	m.terminal = e.Terminal
	if e.Err != nil {
		m.lastErr = e.Err
	}

	text := e.Previous.String() + " -> " + e.Current.String()
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	if e.Terminal {
		text += " [giving up]"
	}
	m.events = appendEvent(m.events, eventLine{
		at:   time.Now(),
		kind: "state",
		text: text,
		err:  e.Current == graphws.StateError,
	})
	return m
}

// applyBatch folds a delivered batch into counters and the event list.
func (m Model) applyBatch(batch graphws.Batch) Model {
	m.batches++
	m.updates += int64(len(batch))
	m.lastBatch = len(batch)

	for _, u := range batch {
		text := u.Kind.String()
		if id := u.TargetID(); id != "" {
			text += " " + id
		}
		m.events = appendEvent(m.events, eventLine{
			at:   u.Timestamp,
			kind: "update",
			text: text,
		})
	}
	return m
}

// appendEvent appends and trims the event buffer.
func appendEvent(events []eventLine, e eventLine) []eventLine {
	events = append(events, e)
	if len(events) > maxEventLines {
		events = events[len(events)-maxEventLines:]
	}
	return events
}

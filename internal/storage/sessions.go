// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides session recording persistence for graphwatch.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/graphwatch/internal/metrics"
	"github.com/jeranaias/graphwatch/internal/util"
)

// =============================================================================
// STORED SESSION TYPE
// =============================================================================

// Session is one recorded observation session: the stream events seen and
// the metric snapshots taken between start and stop.
type Session struct {
	// Identity
	ID        string    `json:"id"`
	ServerURL string    `json:"server_url"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`

	// Timeline
	Events    []Event            `json:"events"`
	Snapshots []metrics.Snapshot `json:"snapshots,omitempty"`
}

// Event is one recorded timeline entry: a graph update or a connection
// state transition.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	// Kind is the update kind ("node_added", ...) or "state" for
	// connection transitions
	Kind string `json:"kind"`
	// TargetID is the affected node/edge/cluster ID, when applicable
	TargetID string `json:"target_id,omitempty"`
	// Detail carries the state transition or error text
	Detail string `json:"detail,omitempty"`
}

// SessionMeta contains metadata for listing sessions.
type SessionMeta struct {
	ID            string    `json:"id"`
	ServerURL     string    `json:"server_url"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
	EventCount    int       `json:"event_count"`
	SnapshotCount int       `json:"snapshot_count"`
}

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore handles session persistence as one JSON file per session.
type SessionStore struct {
	// BaseDir is the directory for storing sessions
	// Default: ~/.graphwatch/sessions/
	BaseDir string

	// MaxSessions limits stored sessions (0 = unlimited)
	MaxSessions int
}

// NewSessionStore creates a store rooted at baseDir. maxSessions bounds
// retention; the oldest sessions are pruned past the bound.
func NewSessionStore(baseDir string, maxSessions int) (*SessionStore, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".graphwatch", "sessions")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &SessionStore{
		BaseDir:     baseDir,
		MaxSessions: maxSessions,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a session and returns its ID.
func (s *SessionStore) Save(sess *Session) (string, error) {
	if sess.ID == "" {
		sess.ID = generateSessionID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.filePath(sess.ID), data, 0644); err != nil {
		return "", err
	}

	if s.MaxSessions > 0 {
		s.enforceLimit()
	}

	return sess.ID, nil
}

// enforceLimit removes oldest sessions if over limit.
func (s *SessionStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxSessions {
		return
	}

	// Sort by start time (oldest first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].StartedAt.Before(metas[j].StartedAt)
	})

	excess := len(metas) - s.MaxSessions
	for i := 0; i < excess; i++ {
		s.Delete(metas[i].ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a session by ID.
func (s *SessionStore) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}

	return &sess, nil
}

// LoadByIndex loads a session by its index in the list (0 = most recent).
func (s *SessionStore) LoadByIndex(index int) (*Session, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(metas) {
		return nil, ErrSessionNotFound
	}

	return s.Load(metas[index].ID)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved sessions (most recent first).
func (s *SessionStore) List() ([]SessionMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionMeta{}, nil
		}
		return nil, err
	}

	var metas []SessionMeta

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		sess, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}

		metas = append(metas, SessionMeta{
			ID:            sess.ID,
			ServerURL:     sess.ServerURL,
			StartedAt:     sess.StartedAt,
			EndedAt:       sess.EndedAt,
			EventCount:    len(sess.Events),
			SnapshotCount: len(sess.Snapshots),
		})
	}

	// Most recent first
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].StartedAt.After(metas[j].StartedAt)
	})

	return metas, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a session by ID.
func (s *SessionStore) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// Clear removes all saved sessions.
func (s *SessionStore) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a session ID.
func (s *SessionStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// generateSessionID creates a unique session ID.
func generateSessionID() string {
	return "sess_" + uuid.NewString()
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrSessionNotFound is returned when a session doesn't exist.
// Use errors.Is(err, ErrSessionNotFound) to check for this error.
var ErrSessionNotFound = &SessionError{Message: "session not found"}

// SessionError represents a session-related error.
type SessionError struct {
	Message string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing session errors.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats sessions for display in a table format.
func FormatSessionList(sessions []SessionMeta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	sb.WriteString("--------------------------------------------------------------\n")
	sb.WriteString(formatPadded("ID", 18) + " " + formatPadded("Started", 20) + " " + formatPadded("Events", 8) + " Server\n")
	sb.WriteString("--------------------------------------------------------------\n")

	for _, s := range sessions {
		idStr := s.ID
		if len(idStr) > 18 {
			idStr = idStr[:18]
		}
		startedStr := s.StartedAt.Format("2006-01-02 15:04")

		sb.WriteString(formatPadded(idStr, 18) + " " +
			formatPadded(startedStr, 20) + " " +
			formatPadded(util.IntToStr(s.EventCount), 8) + " " +
			truncateString(s.ServerURL, 30) + "\n")
	}
	return sb.String()
}

// truncateString truncates a string to maxLen characters, adding "..." if
// truncated. Rune-based for proper Unicode handling.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatPadded pads a string to the specified width with spaces.
func formatPadded(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(runes))
}

// =============================================================================
// SESSION EXPORT
// =============================================================================

// ExportMarkdown exports the session timeline as a Markdown string.
func (s *Session) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Session " + s.ID + "\n\n")
	sb.WriteString("Server: " + s.ServerURL + "\n\n")
	sb.WriteString("Started: " + s.StartedAt.Format(time.RFC3339) + "\n\n")
	if !s.EndedAt.IsZero() {
		sb.WriteString("Ended: " + s.EndedAt.Format(time.RFC3339) + "\n\n")
	}
	sb.WriteString("---\n\n")

	for _, e := range s.Events {
		sb.WriteString("- `" + e.Timestamp.Format("15:04:05.000") + "` **" + e.Kind + "**")
		if e.TargetID != "" {
			sb.WriteString(" " + e.TargetID)
		}
		if e.Detail != "" {
			sb.WriteString(" (" + e.Detail + ")")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// ExportJSON exports the session as a pretty-printed JSON byte array.
func (s *Session) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

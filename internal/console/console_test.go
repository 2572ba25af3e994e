// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/graphwatch/internal/config"
	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
)

func TestFormatBatchElidesTail(t *testing.T) {
	var batch graphws.Batch
	for i := 0; i < 12; i++ {
		batch = append(batch, graphws.Update{
			Kind:      graphws.UpdateNodeAdded,
			Node:      &graphws.GraphNode{ID: "node"},
			Timestamp: time.Now(),
		})
	}

	lines := formatBatch(batch, 8)
	if len(lines) != 9 {
		t.Fatalf("expected 8 lines plus elision marker, got %d", len(lines))
	}
	if !strings.Contains(lines[8], "4 more") {
		t.Errorf("elision marker missing: %q", lines[8])
	}
	if !strings.Contains(lines[0], "node_added") {
		t.Errorf("update kind missing: %q", lines[0])
	}
}

func TestFormatBatchShort(t *testing.T) {
	batch := graphws.Batch{
		{Kind: graphws.UpdateNodeRemoved, NodeID: "n9"},
	}
	lines := formatBatch(batch, 8)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "n9") {
		t.Errorf("target ID missing: %q", lines[0])
	}
}

func TestFormatTrend(t *testing.T) {
	tests := []struct {
		trend metrics.Trend
		want  string
	}{
		{metrics.Trend{Direction: metrics.TrendUp, Magnitude: 0.105}, "+10.5%"},
		{metrics.Trend{Direction: metrics.TrendDown, Magnitude: 0.25}, "-25.0%"},
		{metrics.Trend{Direction: metrics.TrendStable}, "~0%"},
	}

	for _, tt := range tests {
		if got := formatTrend(tt.trend); got != tt.want {
			t.Errorf("formatTrend(%v) = %q, want %q", tt.trend.Direction, got, tt.want)
		}
	}
}

func TestTrendGlyph(t *testing.T) {
	if !strings.Contains(trendGlyph(metrics.TrendUp), "up") {
		t.Error("TrendUp glyph should mention up")
	}
	if !strings.Contains(trendGlyph(metrics.TrendDown), "down") {
		t.Error("TrendDown glyph should mention down")
	}
	if !strings.Contains(trendGlyph(metrics.TrendStable), "stable") {
		t.Error("TrendStable glyph should mention stable")
	}
}

func TestRecordStartOpensStoreOnDemand(t *testing.T) {
	cfg := config.Default()
	cfg.Recording.Dir = t.TempDir()
	cfg.Recording.MaxSessions = 5

	c := New(cfg, nil, nil, nil)

	if err := c.handleRecord([]string{"start"}); err != nil {
		t.Fatalf("record start with no pre-opened store: %v", err)
	}
	if c.store == nil {
		t.Fatal("store should be opened on demand")
	}
	c.mu.Lock()
	rec := c.recorder
	c.mu.Unlock()
	if rec == nil || rec.ID() == "" {
		t.Fatal("recorder should be active with a session ID")
	}

	id, err := c.stopRecording()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if id == "" {
		t.Error("stop should return the saved session ID")
	}

	metas, err := c.store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 1 {
		t.Errorf("expected 1 saved session, got %d", len(metas))
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// view.go - Console output formatting.
package console

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
	"github.com/jeranaias/graphwatch/internal/util"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)
)

// printWelcome shows the console banner.
func (c *Console) printWelcome() {
	fmt.Println(headerStyle.Render("graphwatch console"))
	fmt.Printf("%s %s\n", dimStyle.Render("hub:"), c.cfg.Server.BaseURL)
	fmt.Println(dimStyle.Render("Type 'help' for commands, 'quit' to exit."))
	fmt.Println()
}

// printHelp lists console commands.
func (c *Console) printHelp() {
	fmt.Println(headerStyle.Render("Commands"))
	fmt.Println("  status                  Connection state, RTT, stream counters")
	fmt.Println("  query <cypher>          Send a graph query; results arrive on the stream")
	fmt.Println("  subscribe <id> [id...]  Subscribe to position updates for nodes")
	fmt.Println("  layout <algorithm>      Request a layout recomputation")
	fmt.Println("  watch [on|off]          Toggle echo of incoming update batches")
	fmt.Println("  trends                  Metric series with trend direction")
	fmt.Println("  record start|stop       Session recording control")
	fmt.Println("  sessions                List recorded sessions")
	fmt.Println("  quit                    Exit the console")
}

// printStatus shows the live connection and stream counters.
func (c *Console) printStatus() {
	state := c.client.State()
	fmt.Printf("%s %s", dimStyle.Render("state:"), state)
	if state == graphws.StateReconnecting {
		fmt.Printf(" (attempt %d)", c.client.Attempts())
	}
	if c.client.Terminal() {
		fmt.Print(errorStyle.Render(" [terminal]"))
	}
	fmt.Println()

	if rtt := c.client.RTT(); rtt > 0 {
		fmt.Printf("%s %.1f ms\n", dimStyle.Render("rtt:"), float64(rtt.Microseconds())/1000.0)
	}
	if err := c.client.LastError(); err != nil {
		fmt.Printf("%s %s\n", dimStyle.Render("last error:"), err)
	}
	fmt.Printf("%s %d batches, %d updates, %d pending\n",
		dimStyle.Render("stream:"),
		atomic.LoadInt64(&c.batches),
		atomic.LoadInt64(&c.updates),
		c.client.Pending())

	c.mu.Lock()
	rec := c.recorder
	c.mu.Unlock()
	if rec != nil {
		fmt.Printf("%s %s (%d events)\n", dimStyle.Render("recording:"), rec.ID(), rec.EventCount())
	}
}

// printTrends shows each metric series with its trend.
func (c *Console) printTrends() {
	if c.metrics == nil {
		fmt.Println(dimStyle.Render("metrics service not running"))
		return
	}
	snap := c.metrics.Snapshot(false)
	if len(snap.Series) == 0 {
		fmt.Println(dimStyle.Render("no samples yet"))
		return
	}
	for _, s := range snap.Series {
		fmt.Printf("  %-22s %10.3f  %s  %s\n",
			s.Name, s.Latest, trendGlyph(s.Trend.Direction),
			dimStyle.Render(formatTrend(s.Trend)))
	}
}

// printExitSummary prints stream totals on exit.
func (c *Console) printExitSummary() {
	fmt.Printf("%s %d batches, %d updates\n",
		dimStyle.Render("session:"),
		atomic.LoadInt64(&c.batches),
		atomic.LoadInt64(&c.updates))
}

// trendGlyph maps a trend direction to an ASCII marker.
func trendGlyph(d metrics.TrendDirection) string {
	switch d {
	case metrics.TrendUp:
		return okStyle.Render("up")
	case metrics.TrendDown:
		return errorStyle.Render("down")
	default:
		return dimStyle.Render("stable")
	}
}

// formatTrend renders a trend as a signed percentage. An infinite
// magnitude means the prior window averaged zero; no percentage exists.
func formatTrend(t metrics.Trend) string {
	switch t.Direction {
	case metrics.TrendUp:
		if math.IsInf(t.Magnitude, 1) {
			return "new"
		}
		return fmt.Sprintf("+%.1f%%", t.Magnitude*100)
	case metrics.TrendDown:
		if math.IsInf(t.Magnitude, 1) {
			return "new"
		}
		return fmt.Sprintf("-%.1f%%", t.Magnitude*100)
	default:
		return "~0%"
	}
}

// formatBatch renders a delivered batch as display lines, eliding the
// tail past maxLines.
func formatBatch(batch graphws.Batch, maxLines int) []string {
	lines := make([]string, 0, maxLines+1)
	for i, u := range batch {
		if i == maxLines {
			lines = append(lines, dimStyle.Render(
				fmt.Sprintf("  ... %d more", len(batch)-maxLines)))
			break
		}
		line := "  " + u.Kind.String()
		if id := u.TargetID(); id != "" {
			line += "  " + util.TruncateWidth(id, 40)
		}
		lines = append(lines, line)
	}
	return lines
}

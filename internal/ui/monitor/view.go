// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// view.go - Dashboard rendering.
package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
	"github.com/jeranaias/graphwatch/internal/util"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "starting..."
	}

	header := m.renderHeader()
	conn := m.renderConnection()
	stream := m.renderStream()
	trends := m.renderTrends()

	top := lipgloss.JoinHorizontal(lipgloss.Top, conn, stream)
	events := m.renderEvents(m.height - lipgloss.Height(header) -
		lipgloss.Height(top) - lipgloss.Height(trends) - 2)

	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, top, trends, events, footer)
}

// renderHeader shows the title and hub URL.
func (m Model) renderHeader() string {
	title := titleStyle.Render("graphwatch")
	hub := dimStyle.Render(m.cfg.Server.BaseURL)
	uptime := dimStyle.Render("up " + formatUptime(time.Since(m.started)))

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(hub) - lipgloss.Width(uptime) - 4
	if gap < 1 {
		gap = 1
	}
	return " " + title + "  " + hub + strings.Repeat(" ", gap) + uptime
}

// renderConnection shows the connection panel.
func (m Model) renderConnection() string {
	var state string
	switch m.connState {
	case graphws.StateConnected:
		state = goodStyle.Render("CONNECTED")
	case graphws.StateError:
		state = badStyle.Render("ERROR")
	case graphws.StateReconnecting:
		state = m.spin.View() + " " + warnStyle.Render(fmt.Sprintf("RECONNECTING (%d)", m.attempt))
	case graphws.StateConnecting:
		state = m.spin.View() + " " + warnStyle.Render("CONNECTING")
	default:
		state = dimStyle.Render("DISCONNECTED")
	}
	if m.terminal {
		state += " " + badStyle.Render("[terminal]")
	}

	lines := []string{
		panelTitleStyle.Render("Connection"),
		labelStyle.Render("state  ") + state,
	}
	if rtt := m.client.RTT(); rtt > 0 {
		lines = append(lines, labelStyle.Render("rtt    ")+
			valueStyle.Render(fmt.Sprintf("%.1f ms", float64(rtt.Microseconds())/1000.0)))
	}
	if m.lastErr != nil {
		lines = append(lines, labelStyle.Render("error  ")+
			badStyle.Render(util.TruncateWidth(m.lastErr.Error(), m.panelWidth()-10)))
	}
	if m.recorder != nil {
		lines = append(lines, labelStyle.Render("rec    ")+
			warnStyle.Render(fmt.Sprintf("%s (%d events)", m.recorder.ID(), m.recorder.EventCount())))
	}

	return panelStyle.Width(m.panelWidth()).Render(strings.Join(lines, "\n"))
}

// renderStream shows the throughput panel.
func (m Model) renderStream() string {
	lines := []string{
		panelTitleStyle.Render("Stream"),
		labelStyle.Render("batches  ") + valueStyle.Render(fmt.Sprintf("%d", m.batches)),
		labelStyle.Render("updates  ") + valueStyle.Render(fmt.Sprintf("%d", m.updates)),
		labelStyle.Render("last     ") + valueStyle.Render(fmt.Sprintf("%d in batch", m.lastBatch)),
		labelStyle.Render("pending  ") + valueStyle.Render(fmt.Sprintf("%d", m.client.Pending())),
	}
	return panelStyle.Width(m.panelWidth()).Render(strings.Join(lines, "\n"))
}

// renderTrends shows each metric series with its windowed trend.
func (m Model) renderTrends() string {
	lines := []string{panelTitleStyle.Render("Metrics")}
	if len(m.snapshot.Series) == 0 {
		lines = append(lines, dimStyle.Render("waiting for samples..."))
	}
	for _, s := range m.snapshot.Series {
		var trend string
		switch {
		case math.IsInf(s.Trend.Magnitude, 1):
			// Prior window averaged zero; there is no percentage
			trend = goodStyle.Render("up   (new)")
		case s.Trend.Direction == metrics.TrendUp:
			trend = goodStyle.Render(fmt.Sprintf("up   +%.1f%%", s.Trend.Magnitude*100))
		case s.Trend.Direction == metrics.TrendDown:
			trend = badStyle.Render(fmt.Sprintf("down -%.1f%%", s.Trend.Magnitude*100))
		default:
			trend = dimStyle.Render("stable")
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s",
			labelStyle.Render(padRight(s.Name, 22)),
			valueStyle.Render(fmt.Sprintf("%10.3f", s.Latest)),
			trend))
	}
	return panelStyle.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

// renderEvents shows the recent-events panel.
func (m Model) renderEvents(height int) string {
	if height < 3 {
		height = 3
	}
	visible := height - 3 // border and title
	if visible < 1 {
		visible = 1
	}

	lines := []string{panelTitleStyle.Render("Events")}
	start := len(m.events) - visible
	if start < 0 {
		start = 0
	}
	for _, e := range m.events[start:] {
		style := valueStyle
		if e.err {
			style = badStyle
		} else if e.kind == "state" {
			style = warnStyle
		}
		line := dimStyle.Render(e.at.Format("15:04:05")) + " " +
			style.Render(util.TruncateWidth(e.text, m.width-16))
		lines = append(lines, line)
	}
	return panelStyle.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

// renderFooter shows key hints.
func (m Model) renderFooter() string {
	if m.showHelp {
		return dimStyle.Render(" q quit  ? toggle help  |  events are batched every " +
			m.cfg.Stream.FlushInterval().String())
	}
	return dimStyle.Render(" q quit  ? help")
}

// panelWidth is the width of a half-screen panel.
func (m Model) panelWidth() int {
	w := m.width/2 - 2
	if w < 20 {
		w = 20
	}
	return w
}

// padRight pads s with spaces to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatUptime renders an uptime duration compactly.
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

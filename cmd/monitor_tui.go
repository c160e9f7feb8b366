// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// TUI model
type monitorModel struct {
	connInfo      string
	stats         *mtp.Statistics
	state         mtp.SessionState
	latest        *mtp.Record
	issues        []mtp.QualityIssue
	eventLog      []eventLogEntry
	maxLogEntries int
	spinner       spinner.Model
	width         int
	height        int
	quitting      bool
	err           error
}

// Messages
type tickMsg time.Time
type stateMsg struct {
	from, to mtp.SessionState
}
type recordMsg struct {
	rec    mtp.Record
	issues []mtp.QualityIssue
}
type eventMsg struct {
	message string
	isError bool
}
type scanDoneMsg struct {
	err error
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func newMonitorModel(connInfo string, stats *mtp.Statistics) monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return monitorModel{
		connInfo:      connInfo,
		stats:         stats,
		state:         mtp.StateUnknown,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		spinner:       s,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = msg.to
		switch msg.to {
		case mtp.StatePowerCycleRequired:
			m.addLogEntry("Probe not responding, power cycle required", true)
		case mtp.StateRecovering:
			m.addLogEntry("Link lost, recovering", true)
		case mtp.StateResponding:
			m.addLogEntry(fmt.Sprintf("Probe responding (was %s)", msg.from), false)
		}

	case recordMsg:
		rec := msg.rec
		m.latest = &rec
		m.issues = msg.issues

	case eventMsg:
		m.addLogEntry(msg.message, msg.isError)

	case scanDoneMsg:
		m.err = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Scan stopped: %v", msg.err), true)
		} else {
			m.addLogEntry("Scan finished", false)
		}
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("MTPCTL - PROBE MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Link state
	switch m.state {
	case mtp.StateResponding:
		s.WriteString(valueStyle.Render("✓ Probe responding"))
	case mtp.StatePowerCycleRequired:
		s.WriteString(errorStyle.Render("✗ Power cycle the probe"))
		s.WriteString(" " + m.spinner.View())
	default:
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(fmt.Sprintf(" Establishing link (%s)...", m.state)))
	}
	s.WriteString("\n\n")

	// Statistics
	c := m.stats.Snapshot()
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Uptime:"), valueStyle.Render(formatUptime(time.Since(c.StartTime))),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pos/min", c.PositionRate)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Positions:"), valueStyle.Render(fmt.Sprintf("%d", c.Positions)),
		labelStyle.Render("Aborted:"), countStyle(c.AbortedScans, valueStyle, warningStyle).Render(fmt.Sprintf("%d (%.1f/h)", c.AbortedScans, c.AbortRate)),
		labelStyle.Render("Recoveries:"), valueStyle.Render(fmt.Sprintf("%d", c.Recoveries)),
		labelStyle.Render("Power cycles:"), countStyle(c.PowerCycleEvents, valueStyle, errorStyle).Render(fmt.Sprintf("%d", c.PowerCycleEvents)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("NaN values:"), countStyle(c.NaNValues, valueStyle, warningStyle).Render(fmt.Sprintf("%d", c.NaNValues)),
		labelStyle.Render("Quality issues:"), countStyle(c.QualityIssues, valueStyle, errorStyle).Render(fmt.Sprintf("%d", c.QualityIssues)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest record (only shown once a position was scanned)
	if m.latest != nil {
		s.WriteString(labelStyle.Render("Latest Position:"))
		s.WriteString("\n")

		recContent := strings.Builder{}
		status := "n/a"
		if m.latest.StatusValid {
			status = m.latest.Status.String()
		}
		recContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Time:"), valueStyle.Render(m.latest.Time.Format("15:04:05.000")),
			labelStyle.Render("Status:"), valueStyle.Render(status),
		))

		names := m.latest.Names()
		const columns = 3
		for i, name := range names {
			v := m.latest.Variables[name]
			style := valueStyle
			if !v.Valid() {
				style = warningStyle
			}
			cell := fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-7s", name)),
				style.Render(fmt.Sprintf("%-14s", mtp.FormatValue(v.Value, v.Unit))))
			recContent.WriteString(cell)
			if (i+1)%columns == 0 || i == len(names)-1 {
				recContent.WriteString("\n")
			} else {
				recContent.WriteString("  ")
			}
		}
		s.WriteString(boxStyle.Render(strings.TrimRight(recContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 24 // Reserve space for header, stats and record
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// countStyle picks alert when n is non-zero.
func countStyle(n uint64, ok, alert lipgloss.Style) lipgloss.Style {
	if n > 0 {
		return alert
	}
	return ok
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/runbatch"
)

const (
	defaultWidth          = 80
	defaultHeight         = 20
	minViewportWidth      = 40
	reservedLines         = 6 // title, border, status bar, help
	unitColumnWidth       = 24
	stageColumnWidth      = 16
	durationRounding      = 100 * time.Millisecond
	ellipsis              = "..."
	completedHelpText     = "↑/↓ to scroll, 'q' to quit"
	runningHelpText       = "↑/↓ to scroll, ctrl+c to cancel the batch"
	minStatusBarAvailable = 8
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// BatchDoneMsg indicates that every unit has a final report.
type BatchDoneMsg struct {
	Summary runbatch.Summary
	Err     error
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.viewport.Width = max(msg.Width-2, minViewportWidth) //nolint:mnd
		m.viewport.Height = max(msg.Height-reservedLines, 1)

		return m, nil

	case ProgressEventMsg:
		m.apply(msg.Event)
		return m, nil

	case BatchDoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.batchErr = msg.Err

		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}

		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

// handleKeyPress processes keyboard input.
// 'q' only quits once the batch is done, ctrl+c always quits.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "q":
		if m.done {
			m.quitting = true
			return m, tea.Quit
		}

		return m, nil
	}

	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var content strings.Builder
	for _, id := range m.order {
		m.renderRow(&content, m.rows[id])
	}

	m.viewport.SetContent(content.String())

	var view strings.Builder

	view.WriteString(m.styles.Title.Render(m.title))
	view.WriteString("\n")
	view.WriteString(m.styles.Border.Render(m.viewport.View()))
	view.WriteString("\n")

	if !m.ready || m.height > minStatusBarAvailable {
		view.WriteString(m.renderStatusBar())
		view.WriteString("\n")

		help := runningHelpText
		if m.done {
			help = completedHelpText
		}

		view.WriteString(m.styles.Help.Render(help))
	}

	return view.String()
}

// renderRow renders one unit as a single line: icon, id, stage, elapsed time, then output or error.
func (m *Model) renderRow(b *strings.Builder, r *UnitRow) {
	var icon string

	var style lipgloss.Style

	switch r.Status {
	case StatusPending:
		icon, style = "·", m.styles.Pending
	case StatusRunning:
		icon, style = m.spinner.View(), m.styles.Running
	case StatusSuccess:
		icon, style = "✓", m.styles.Success
	case StatusFailed:
		icon, style = "✗", m.styles.Failed
	case StatusException:
		icon, style = "!", m.styles.Failed
	default:
		icon, style = "?", m.styles.Pending
	}

	left := fmt.Sprintf("%s %s %s",
		icon,
		style.Render(pad(r.ID, unitColumnWidth)),
		m.styles.Pending.Render(pad(r.Stage, stageColumnWidth)),
	)

	if elapsed := r.Elapsed(m.now()); elapsed > 0 {
		left += m.styles.Output.Render(fmt.Sprintf(" %8s", elapsed.Round(durationRounding)))
	}

	var right string

	switch {
	case r.ErrorMsg != "" && r.Status.Finished():
		right = m.styles.Error.Render(truncate("Error: "+firstLine(r.ErrorMsg), m.rightWidth(left)))
	case r.Status == StatusRunning && r.LastOutput != "":
		right = m.styles.Output.Render(truncate(r.LastOutput, m.rightWidth(left)))
	}

	b.WriteString(left)

	if right != "" {
		b.WriteString("  ")
		b.WriteString(right)
	}

	b.WriteString("\n")
}

func (m *Model) rightWidth(left string) int {
	return max(m.viewport.Width-lipgloss.Width(left)-2, len(ellipsis)) //nolint:mnd
}

// renderStatusBar shows the number of units in each status.
func (m *Model) renderStatusBar() string {
	c := m.counts()

	state := "running"
	if m.done {
		state = m.summary.String()
		if m.batchErr != nil {
			state = "error: " + firstLine(m.batchErr.Error())
		}
	}

	bar := fmt.Sprintf("%d units | %d pending | %d running | %d succeeded | %d failed | %d exceptions | %s",
		len(m.order),
		c[StatusPending],
		c[StatusRunning],
		c[StatusSuccess],
		c[StatusFailed],
		c[StatusException],
		state,
	)

	return m.styles.StatusBar.Render(bar)
}

func pad(s string, width int) string {
	s = truncate(s, width)
	return s + strings.Repeat(" ", max(width-ansi.StringWidth(s), 0))
}

func truncate(s string, width int) string {
	return ansi.Truncate(s, width, ellipsis)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

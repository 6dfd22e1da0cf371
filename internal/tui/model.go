// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/runbatch"
)

// UnitStatus represents the current state of a unit in the TUI.
type UnitStatus int

const (
	StatusPending UnitStatus = iota
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusException
)

// String returns a string representation of the unit status.
func (s UnitStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusException:
		return "exception"
	default:
		return "unknown"
	}
}

// Finished reports whether the unit reached a final status.
func (s UnitStatus) Finished() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusException
}

// UnitRow is the display state of one work unit.
type UnitRow struct {
	ID         string
	Status     UnitStatus
	Stage      string
	LastOutput string
	ErrorMsg   string
	LogPath    string
	StartTime  time.Time
	EndTime    time.Time
}

// Elapsed returns the running time of the unit, zero before it starts.
func (r *UnitRow) Elapsed(now time.Time) time.Duration {
	switch {
	case r.StartTime.IsZero():
		return 0
	case r.EndTime.IsZero():
		return now.Sub(r.StartTime)
	default:
		return r.EndTime.Sub(r.StartTime)
	}
}

// Model represents the TUI application state.
// Bubble Tea calls Update and View from a single goroutine so the model needs no locking.
type Model struct {
	title    string
	order    []string
	rows     map[string]*UnitRow
	viewport viewport.Model
	spinner  spinner.Model
	styles   *Styles
	width    int
	height   int
	ready    bool
	done     bool
	quitting bool
	summary  runbatch.Summary
	batchErr error
	now      func() time.Time
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title     lipgloss.Style
	Pending   lipgloss.Style
	Running   lipgloss.Style
	Success   lipgloss.Style
	Failed    lipgloss.Style
	Output    lipgloss.Style
	Error     lipgloss.Style
	Help      lipgloss.Style
	Border    lipgloss.Style
	StatusBar lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),
	}
}

// NewModel creates a model with one pending row per unit, in the order given.
func NewModel(title string, unitIDs []string) *Model {
	m := &Model{
		title:    title,
		rows:     make(map[string]*UnitRow, len(unitIDs)),
		viewport: viewport.New(defaultWidth, defaultHeight),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		styles:   NewStyles(),
		now:      time.Now,
	}

	m.spinner.Style = m.styles.Running

	for _, id := range unitIDs {
		m.row(id)
	}

	return m
}

// Row returns the display state of a unit, or nil when it is unknown.
func (m *Model) Row(id string) *UnitRow {
	return m.rows[id]
}

// Done reports whether the batch has finished.
func (m *Model) Done() bool {
	return m.done
}

// row returns the row of a unit, adding it when an event names a unit not seen before.
func (m *Model) row(id string) *UnitRow {
	if r, ok := m.rows[id]; ok {
		return r
	}

	r := &UnitRow{ID: id}
	m.rows[id] = r
	m.order = append(m.order, id)

	return r
}

// apply updates the unit row named by the event.
func (m *Model) apply(event progress.Event) {
	r := m.row(event.UnitID)
	ts := event.Timestamp

	if ts.IsZero() {
		ts = m.now()
	}

	switch event.Type {
	case progress.EventStarted:
		r.Status = StatusRunning
		if r.StartTime.IsZero() {
			r.StartTime = ts
		}

	case progress.EventStageStarted:
		r.Status = StatusRunning
		r.Stage = event.Data.Stage
		r.LastOutput = ""

		if r.StartTime.IsZero() {
			r.StartTime = ts
		}

	case progress.EventOutput:
		if event.Data.OutputLine != "" {
			r.LastOutput = event.Data.OutputLine
		}

	case progress.EventCompleted:
		r.Status = StatusSuccess
		r.LogPath = event.Data.LogPath
		r.EndTime = ts

	case progress.EventFailed:
		r.Status = StatusFailed
		r.LogPath = event.Data.LogPath
		r.EndTime = ts

		if event.Data.Error != nil {
			r.ErrorMsg = event.Data.Error.Error()
		} else {
			r.ErrorMsg = "exit code " + strconv.Itoa(event.Data.ExitCode)
		}

	case progress.EventException:
		r.Status = StatusException
		r.EndTime = ts

		if event.Data.Error != nil {
			r.ErrorMsg = event.Data.Error.Error()
		}
	}
}

// counts returns the number of units in each display status.
func (m *Model) counts() map[UnitStatus]int {
	c := make(map[UnitStatus]int, len(m.order))
	for _, id := range m.order {
		c[m.rows[id].Status]++
	}

	return c
}

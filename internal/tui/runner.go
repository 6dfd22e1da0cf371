// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/runbatch"
)

// ErrTUI is returned when the terminal program fails.
var ErrTUI = errors.New("terminal UI error")

var _ progress.Reporter = (*Reporter)(nil)

// Reporter implements progress.Reporter and forwards events to the TUI.
type Reporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewReporter creates a new TUI progress reporter.
func NewReporter(program *tea.Program) *Reporter {
	return &Reporter{
		program: program,
	}
}

// Report implements progress.Reporter.Report.
func (tr *Reporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	tr.program.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.Close.
func (tr *Reporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	tr.closed = true
}

// Batch runs the work units, sending progress to reporter.
type Batch func(ctx context.Context, reporter progress.Reporter) (runbatch.Summary, error)

// Runner manages the TUI application and progress event integration.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *Reporter
}

// NewRunner creates a new TUI runner with one row per unit.
func NewRunner(title string, unitIDs []string, opts ...tea.ProgramOption) *Runner {
	model := NewModel(title, unitIDs)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewReporter(program),
	}
}

// Reporter returns the progress reporter for this TUI runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run starts the TUI and the batch together.
// When the batch finishes the TUI stays open until the user quits, unless ctx was cancelled.
// When the user quits first the batch is cancelled and Run waits for it.
func (r *Runner) Run(ctx context.Context, batch Batch) (runbatch.Summary, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		summary runbatch.Summary
		err     error
	}

	resultChan := make(chan result, 1)

	go func() {
		s, err := batch(batchCtx, r.reporter)
		resultChan <- result{summary: s, err: err}
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	select {
	case res := <-resultChan:
		r.reporter.Close()
		r.program.Send(BatchDoneMsg{Summary: res.summary, Err: res.err})

		if ctx.Err() != nil {
			r.program.Quit()
		}

		if err := <-tuiDone; err != nil {
			return res.summary, errors.Join(res.err, ErrTUI, err)
		}

		return res.summary, res.err

	case err := <-tuiDone:
		r.reporter.Close()
		cancel()

		res := <-resultChan

		if err != nil {
			return res.summary, errors.Join(res.err, ErrTUI, err)
		}

		return res.summary, res.err
	}
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package batch ties the worker pool, the pipeline runner and the console or TUI together
// for one invocation of runfarm.
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/runbatch"
	"github.com/matt-FFFFFF/runfarm/internal/tui"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
)

const eventBufferSize = 256

// ErrNoUnits is returned when there is nothing to run.
var ErrNoUnits = errors.New("no work units")

// ReportFunc is called with each report, in completion order, from a single goroutine.
type ReportFunc func(ctx context.Context, rep runbatch.Report) error

// Options describes one batch.
type Options struct {
	Title        string
	Units        []workunit.WorkUnit
	Jobs         int
	LogDir       string
	LogPrefix    string
	StageTimeout time.Duration
	Capture      bool                 // keep stage output in the outcome, needed by OnReport consumers that parse it
	TUI          bool                 // live unit board instead of console status lines
	Quiet        bool                 // no Executing or status lines, only the summary
	Stages       runbatch.StageRunner // defaults to an Executor built from StageTimeout and Capture
	OnReport     ReportFunc
	TUIOptions   []tea.ProgramOption
}

// Execute runs every unit and returns the status counts.
// Unit failures are counted, not returned. The error reports an invalid batch or OnReport failures.
func Execute(ctx context.Context, out io.Writer, opts Options) (runbatch.Summary, error) {
	if len(opts.Units) == 0 {
		return runbatch.Summary{}, ErrNoUnits
	}

	console := runbatch.NewSyncWriter(out)

	if !opts.TUI {
		ctx = ctxlog.With(ctx, "batch_id", uuid.NewString())
		ctxlog.Info(ctx, "batch started", "title", opts.Title, "units", len(opts.Units), "jobs", opts.Jobs)

		reporter := progress.NewChannelReporter(ctx, eventBufferSize)
		reporter.Listen(&debugListener{ctx: ctx})

		summary, err := execute(ctx, console, reporter, !opts.Quiet, opts)

		reporter.Close()
		fmt.Fprintln(console, summary.String()) //nolint:errcheck

		return summary, err
	}

	// The TUI owns the terminal, logs are held back until it exits.
	logBuf := new(bytes.Buffer)
	ctx = ctxlog.NewForTUI(ctx, logBuf)
	ctx = ctxlog.With(ctx, "batch_id", uuid.NewString())
	ctxlog.Info(ctx, "batch started", "title", opts.Title, "units", len(opts.Units), "jobs", opts.Jobs)

	ids := make([]string, len(opts.Units))
	for i, u := range opts.Units {
		ids[i] = u.ID
	}

	runner := tui.NewRunner(opts.Title, ids, opts.TUIOptions...)

	summary, err := runner.Run(ctx, func(ctx context.Context, reporter progress.Reporter) (runbatch.Summary, error) {
		return execute(ctx, console, reporter, false, opts)
	})

	logBuf.WriteTo(console)                 //nolint:errcheck
	fmt.Fprintln(console, summary.String()) //nolint:errcheck

	return summary, err
}

func execute(
	ctx context.Context,
	console io.Writer,
	reporter progress.Reporter,
	echo bool,
	opts Options,
) (runbatch.Summary, error) {
	var summary runbatch.Summary

	stages := opts.Stages
	if stages == nil {
		stages = &runbatch.Executor{Timeout: opts.StageTimeout, Capture: opts.Capture}
	}

	pipeline := &runbatch.Pipeline{
		Stages:    stages,
		LogDir:    opts.LogDir,
		LogPrefix: opts.LogPrefix,
		Reporter:  reporter,
	}

	if echo {
		pipeline.Console = console
	}

	pool := &runbatch.Pool{
		Jobs:     opts.Jobs,
		Runner:   pipeline,
		Reporter: reporter,
	}

	reports, err := pool.Start(ctx, opts.Units)
	if err != nil {
		return summary, err //nolint:wrapcheck
	}

	var errs error

	for rep := range reports {
		summary.Add(rep)

		if echo {
			if err := runbatch.WriteStatus(console, rep); err != nil {
				ctxlog.Warn(ctx, "cannot write status line", "unit", rep.Unit.ID, "error", err)
			}
		}

		if opts.OnReport == nil {
			continue
		}

		if err := opts.OnReport(ctx, rep); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	ctxlog.Info(ctx, "batch finished",
		"success", summary.Success,
		"failure", summary.Failure,
		"exception", summary.Exception,
	)

	return summary, errs
}

// debugListener logs every progress event at debug level.
type debugListener struct {
	ctx context.Context //nolint:containedctx
}

func (l *debugListener) OnEvent(event progress.Event) {
	args := []any{"unit", event.UnitID, "event", event.Type.String()}

	if event.Data.Stage != "" {
		args = append(args, "stage", event.Data.Stage)
	}

	switch event.Type {
	case progress.EventOutput:
		args = append(args, "line", event.Data.OutputLine)
	case progress.EventFailed, progress.EventException:
		args = append(args, "exitCode", event.Data.ExitCode, "error", event.Data.Error)
	}

	ctxlog.Debug(l.ctx, "progress", args...)
}

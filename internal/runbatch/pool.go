// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidJobs is returned when the pool size is not positive.
	ErrInvalidJobs = errors.New("jobs must be a positive number")
	// ErrNoRunner is returned when the pool has no unit runner.
	ErrNoRunner = errors.New("pool has no unit runner")
	// ErrPanic wraps a panic recovered from a unit.
	ErrPanic = errors.New("panic while running unit")
	// ErrNotStarted is returned for units still queued when the context ended.
	ErrNotStarted = errors.New("unit not started")
)

// Report is the final result of one unit, delivered in completion order.
type Report struct {
	Unit    workunit.WorkUnit
	Outcome Outcome
	Status  Status
	Err     error // set for StatusException
}

// Pool runs work units with a bounded number of workers.
type Pool struct {
	Jobs     int               // maximum number of units in flight
	Runner   UnitRunner        // runs one unit
	Reporter progress.Reporter // optional live progress
}

// Start dispatches every unit and returns immediately.
// The returned channel yields exactly one report per unit and is closed after the last one.
// A unit that panics or cannot be orchestrated is reported as an exception, the other units carry on.
func (p *Pool) Start(ctx context.Context, units []workunit.WorkUnit) (<-chan Report, error) {
	if p.Jobs <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidJobs, p.Jobs)
	}

	if p.Runner == nil {
		return nil, ErrNoRunner
	}

	ctxlog.Debug(ctx, "starting pool", "jobs", p.Jobs, "units", len(units))

	reports := make(chan Report, len(units))

	var g errgroup.Group

	g.SetLimit(p.Jobs)

	go func() {
		defer close(reports)

		for _, u := range units {
			g.Go(func() error {
				reports <- p.runUnit(ctx, u)
				return nil
			})
		}

		_ = g.Wait()
	}()

	return reports, nil
}

// Run starts the units and collects every report in completion order.
func (p *Pool) Run(ctx context.Context, units []workunit.WorkUnit) ([]Report, error) {
	ch, err := p.Start(ctx, units)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(units))
	for r := range ch {
		reports = append(reports, r)
	}

	return reports, nil
}

func (p *Pool) runUnit(ctx context.Context, u workunit.WorkUnit) (rep Report) {
	reporter := progress.OrNull(p.Reporter)
	rep = Report{Unit: u}

	defer func() {
		if r := recover(); r != nil {
			ctxlog.Error(ctx, "unit panicked", "unit", u.ID, "panic", r, "stack", string(debug.Stack()))
			rep.Status = StatusException
			rep.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}

		if rep.Status == StatusException {
			reporter.Report(progress.Event{
				UnitID:    u.ID,
				Type:      progress.EventException,
				Message:   errString(rep.Err),
				Timestamp: time.Now(),
				Data:      progress.EventData{Error: rep.Err, ExitCode: -1},
			})
		}
	}()

	if err := ctx.Err(); err != nil {
		rep.Status = StatusException
		rep.Err = errors.Join(ErrNotStarted, err)

		return rep
	}

	reporter.Report(progress.Event{
		UnitID:    u.ID,
		Type:      progress.EventStarted,
		Message:   u.Run,
		Timestamp: time.Now(),
	})

	out, err := p.Runner.Run(ctx, u)
	rep.Outcome = out

	switch {
	case err != nil:
		rep.Status = StatusException
		rep.Err = err
	case out.Succeeded():
		rep.Status = StatusSuccess
	default:
		rep.Status = StatusFailure
	}

	return rep
}

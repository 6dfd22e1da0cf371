// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matt-FFFFFF/runfarm/internal/color"
	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// unitFunc adapts a function to UnitRunner.
type unitFunc func(context.Context, workunit.WorkUnit) (Outcome, error)

func (f unitFunc) Run(ctx context.Context, u workunit.WorkUnit) (Outcome, error) {
	return f(ctx, u)
}

func units(t *testing.T, n int) []workunit.WorkUnit {
	t.Helper()

	runs := make([]string, n)
	for i := range runs {
		runs[i] = fmt.Sprintf("%03d", i+1)
	}

	us, err := workunit.Expand(runs, []workunit.StageTemplate{{Name: "s", Program: "true"}})
	require.NoError(t, err)

	return us
}

func doneOutcome(u workunit.WorkUnit) Outcome {
	return Outcome{UnitID: u.ID, State: StateDone, FailedStage: -1, LogPath: "logs/run_" + u.ID + ".log"}
}

func TestPool_InvalidJobs(t *testing.T) {
	for _, jobs := range []int{0, -1} {
		p := &Pool{Jobs: jobs, Runner: unitFunc(func(context.Context, workunit.WorkUnit) (Outcome, error) {
			return Outcome{}, nil
		})}

		_, err := p.Start(t.Context(), units(t, 1))
		require.ErrorIs(t, err, ErrInvalidJobs)
	}

	_, err := (&Pool{Jobs: 1}).Start(t.Context(), nil)
	require.ErrorIs(t, err, ErrNoRunner)
}

func TestPool_OneReportPerUnit(t *testing.T) {
	defer goleak.VerifyNone(t)

	us := units(t, 25)
	p := &Pool{Jobs: 4, Runner: unitFunc(func(_ context.Context, u workunit.WorkUnit) (Outcome, error) {
		return doneOutcome(u), nil
	})}

	reports, err := p.Run(t.Context(), us)
	require.NoError(t, err)
	require.Len(t, reports, len(us))

	seen := make(map[string]int)
	for _, r := range reports {
		seen[r.Unit.ID]++
		assert.Equal(t, StatusSuccess, r.Status)
	}

	for _, u := range us {
		assert.Equal(t, 1, seen[u.ID], u.ID)
	}
}

func TestPool_ConcurrencyBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	const jobs = 3

	var inFlight, peak atomic.Int32

	p := &Pool{Jobs: jobs, Runner: unitFunc(func(_ context.Context, u workunit.WorkUnit) (Outcome, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)

		return doneOutcome(u), nil
	})}

	reports, err := p.Run(t.Context(), units(t, 20))
	require.NoError(t, err)
	assert.Len(t, reports, 20)
	assert.LessOrEqual(t, peak.Load(), int32(jobs))
	assert.Equal(t, int32(jobs), peak.Load(), "the pool should reach its bound with enough units")
}

func TestPool_CompletionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	us := units(t, 2)
	p := &Pool{Jobs: 2, Runner: unitFunc(func(_ context.Context, u workunit.WorkUnit) (Outcome, error) {
		if u.Index == 1 {
			time.Sleep(100 * time.Millisecond)
		}

		return doneOutcome(u), nil
	})}

	reports, err := p.Run(t.Context(), us)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "002", reports[0].Unit.ID)
	assert.Equal(t, "001", reports[1].Unit.ID)
}

func TestPool_FailureIsolation(t *testing.T) {
	defer goleak.VerifyNone(t)

	errLog := errors.New("log directory is not writable")

	p := &Pool{Jobs: 2, Runner: unitFunc(func(_ context.Context, u workunit.WorkUnit) (Outcome, error) {
		switch u.ID {
		case "002":
			o := doneOutcome(u)
			o.State = StateFailed
			o.FailedStage = 0
			o.ExitCode = 1

			return o, nil
		case "003":
			panic("histogram binning exploded")
		case "004":
			return Outcome{UnitID: u.ID}, errLog
		default:
			return doneOutcome(u), nil
		}
	})}

	reports, err := p.Run(t.Context(), units(t, 5))
	require.NoError(t, err)
	require.Len(t, reports, 5)

	byID := make(map[string]Report)
	for _, r := range reports {
		byID[r.Unit.ID] = r
	}

	assert.Equal(t, StatusSuccess, byID["001"].Status)
	assert.Equal(t, StatusFailure, byID["002"].Status)
	assert.Equal(t, StatusException, byID["003"].Status)
	require.ErrorIs(t, byID["003"].Err, ErrPanic)
	assert.Contains(t, byID["003"].Err.Error(), "histogram binning exploded")
	assert.Equal(t, StatusException, byID["004"].Status)
	require.ErrorIs(t, byID["004"].Err, errLog)
	assert.Equal(t, StatusSuccess, byID["005"].Status)
}

func TestPool_CancelledBeforeStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var calls atomic.Int32

	p := &Pool{Jobs: 1, Runner: unitFunc(func(_ context.Context, u workunit.WorkUnit) (Outcome, error) {
		calls.Add(1)
		return doneOutcome(u), nil
	})}

	reports, err := p.Run(ctx, units(t, 3))
	require.NoError(t, err)
	require.Len(t, reports, 3)

	for _, r := range reports {
		assert.Equal(t, StatusException, r.Status)
		require.ErrorIs(t, r.Err, ErrNotStarted)
		require.ErrorIs(t, r.Err, context.Canceled)
	}

	assert.Zero(t, calls.Load())
}

func TestPool_ReportsProgress(t *testing.T) {
	defer goleak.VerifyNone(t)

	reporter := progress.NewChannelReporter(t.Context(), 16)

	p := &Pool{Jobs: 1, Reporter: reporter, Runner: unitFunc(func(_ context.Context, u workunit.WorkUnit) (Outcome, error) {
		if u.ID == "002" {
			panic("boom")
		}

		return doneOutcome(u), nil
	})}

	_, err := p.Run(t.Context(), units(t, 2))
	require.NoError(t, err)
	reporter.Close()

	var got []string
	for ev := range reporter.Events() {
		got = append(got, ev.UnitID+":"+ev.Type.String())
	}

	assert.Equal(t, []string{"001:started", "002:started", "002:exception"}, got)
}

// The 101/102 scenario end to end through the pool with real processes.
func TestPool_RealPipelines(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)
	defer color.SetEnabled(color.SetEnabled(false))

	dir := t.TempDir()
	templates := []workunit.StageTemplate{
		{Name: "first", Program: "/bin/sh", Args: []string{"-c", "echo ok"}},
		{Name: "second", Program: "/bin/sh", Args: []string{"-c", `test "{run}" != 102`}},
	}

	us, err := workunit.Expand([]string{"101", "102"}, templates)
	require.NoError(t, err)

	console := NewSyncWriter(&strings.Builder{})
	p := &Pool{Jobs: 2, Runner: &Pipeline{LogDir: dir, LogPrefix: "run_", Console: console}}

	reports, err := p.Run(t.Context(), us)
	require.NoError(t, err)

	var lines []string

	var sum Summary

	for _, r := range reports {
		lines = append(lines, FormatStatus(r))
		sum.Add(r)
	}

	assert.ElementsMatch(t, []string{
		"[Run 101] SUCCESS. Log: " + dir + "/run_101.log",
		"[Run 102] FAILURE. Log: " + dir + "/run_102.log",
	}, lines)
	assert.Equal(t, Summary{Success: 1, Failure: 1}, sum)
	assert.False(t, sum.AllSucceeded())
}

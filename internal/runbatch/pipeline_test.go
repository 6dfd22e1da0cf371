// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStages answers each stage by name and records the order stages ran in.
type fakeStages struct {
	mu      sync.Mutex
	results map[string]StageResult
	output  map[string]string
	ran     []string
}

func (f *fakeStages) Run(_ context.Context, stage workunit.Stage, w io.Writer) StageResult {
	f.mu.Lock()
	f.ran = append(f.ran, stage.Name)
	f.mu.Unlock()

	if s, ok := f.output[stage.Name]; ok {
		_, _ = io.WriteString(w, s)
	}

	res := f.results[stage.Name]
	if res.Output == nil && f.output != nil {
		res.Output = []byte(f.output[stage.Name])
	}

	return res
}

func testUnit(t *testing.T, run string, names ...string) workunit.WorkUnit {
	t.Helper()

	templates := make([]workunit.StageTemplate, len(names))
	for i, n := range names {
		templates[i] = workunit.StageTemplate{Name: n, Program: n, Args: []string{"-r", "{run}"}}
	}

	u, err := workunit.New(1, run, nil, templates)
	require.NoError(t, err)

	return u
}

func memFS(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&FS, fs)
	t.Cleanup(stubs.Reset)

	return fs
}

func readLog(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()

	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func TestPipeline_AllStagesSucceed(t *testing.T) {
	fs := memFS(t)
	stages := &fakeStages{output: map[string]string{"a": "alpha\n", "b": "beta\n"}}

	var console bytes.Buffer

	p := &Pipeline{Stages: stages, LogDir: "logs", LogPrefix: "run_", Console: &console}
	out, err := p.Run(t.Context(), testUnit(t, "101", "a", "b"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.True(t, out.Succeeded())
	assert.Equal(t, -1, out.FailedStage)
	assert.Equal(t, filepath.Join("logs", "run_101.log"), out.LogPath)
	assert.Equal(t, []string{"a", "b"}, stages.ran)
	assert.Equal(t, "alpha\nbeta\n", string(out.Output))

	assert.Equal(t, []string{
		"[Run 101] Executing: a -r 101",
		"alpha",
		"[Run 101] Executing: b -r 101",
		"beta",
		"[Run 101] All commands completed successfully.",
	}, readLog(t, fs, out.LogPath))

	assert.Equal(t, "[Run 101] Executing: a -r 101\n[Run 101] Executing: b -r 101\n", console.String())
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	fs := memFS(t)
	stages := &fakeStages{results: map[string]StageResult{"b": {ExitCode: 2}}}

	p := &Pipeline{Stages: stages, LogDir: "logs", LogPrefix: "run_"}
	out, err := p.Run(t.Context(), testUnit(t, "102", "a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 1, out.FailedStage)
	assert.Equal(t, "b", out.FailedStageName)
	assert.Equal(t, 2, out.ExitCode)
	assert.Equal(t, []string{"a", "b"}, stages.ran, "stages after the failure never run")

	lines := readLog(t, fs, out.LogPath)
	assert.Equal(t, "[Run 102] ERROR: Command failed with exit code 2", lines[len(lines)-1])
	assert.NotContains(t, strings.Join(lines, "\n"), "completed successfully")
}

func TestPipeline_LaunchFailure(t *testing.T) {
	fs := memFS(t)
	stages := &fakeStages{results: map[string]StageResult{
		"a": {ExitCode: -1, Err: errors.Join(ErrCouldNotStartProcess, ErrCommandNotFound)},
	}}

	p := &Pipeline{Stages: stages, LogDir: "logs"}
	out, err := p.Run(t.Context(), testUnit(t, "103", "a", "b"))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, -1, out.ExitCode)
	require.ErrorIs(t, out.Err, ErrCommandNotFound)

	lines := readLog(t, fs, out.LogPath)
	assert.Equal(t, "[Run 103] ERROR: Command could not be started: could not start process: command not found", lines[len(lines)-1])
}

func TestPipeline_PartialLineKeepsHeadersSeparate(t *testing.T) {
	fs := memFS(t)
	stages := &fakeStages{output: map[string]string{"a": "50.0 % done"}}

	p := &Pipeline{Stages: stages}
	out, err := p.Run(t.Context(), testUnit(t, "104", "a"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[Run 104] Executing: a -r 104",
		"50.0 % done",
		"[Run 104] All commands completed successfully.",
	}, readLog(t, fs, out.LogPath))
}

func TestPipeline_AppendsToExistingLog(t *testing.T) {
	fs := memFS(t)
	require.NoError(t, afero.WriteFile(fs, filepath.Join("logs", "run_105.log"), []byte("previous attempt\n"), 0o644))

	p := &Pipeline{Stages: &fakeStages{}, LogDir: "logs", LogPrefix: "run_"}
	out, err := p.Run(t.Context(), testUnit(t, "105", "a"))
	require.NoError(t, err)

	lines := readLog(t, fs, out.LogPath)
	assert.Equal(t, "previous attempt", lines[0])
	assert.Len(t, lines, 3)
}

func TestPipeline_LogOpenFailureIsAnError(t *testing.T) {
	stubs := gostub.Stub(&FS, afero.NewReadOnlyFs(afero.NewMemMapFs()))
	defer stubs.Reset()

	stages := &fakeStages{}
	p := &Pipeline{Stages: stages, LogDir: "logs"}

	_, err := p.Run(t.Context(), testUnit(t, "106", "a"))
	require.ErrorIs(t, err, ErrOpenLog)
	assert.Empty(t, stages.ran)
}

func TestPipeline_ReportsProgress(t *testing.T) {
	memFS(t)

	reporter := progress.NewChannelReporter(t.Context(), 32)
	stages := &fakeStages{
		output:  map[string]string{"a": "Run Number: 107\n", "b": ""},
		results: map[string]StageResult{"b": {ExitCode: 1}},
	}

	p := &Pipeline{Stages: stages, Reporter: reporter}
	_, err := p.Run(t.Context(), testUnit(t, "107", "a", "b"))
	require.NoError(t, err)

	reporter.Close()

	var types []progress.EventType

	var lines []string

	for ev := range reporter.Events() {
		assert.Equal(t, "107", ev.UnitID)
		types = append(types, ev.Type)

		if ev.Type == progress.EventOutput {
			lines = append(lines, ev.Data.OutputLine)
		}
	}

	assert.Equal(t, []progress.EventType{
		progress.EventStageStarted,
		progress.EventOutput,
		progress.EventStageStarted,
		progress.EventFailed,
	}, types)
	assert.Equal(t, []string{"Run Number: 107"}, lines)
}

// The 101/102 scenario with real processes: stage 1 always succeeds, stage 2 fails for run 102 only.
func TestPipeline_RealProcesses(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	templates := []workunit.StageTemplate{
		{Name: "first", Program: "/bin/sh", Args: []string{"-c", "echo stage one for {run}"}},
		{Name: "second", Program: "/bin/sh", Args: []string{"-c", `test "{run}" != 102 || exit 7`}},
	}

	units, err := workunit.Expand([]string{"101", "102"}, templates)
	require.NoError(t, err)

	p := &Pipeline{LogDir: dir, LogPrefix: "run_"}

	for _, u := range units {
		out, err := p.Run(t.Context(), u)
		require.NoError(t, err)

		b, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("run_%s.log", u.Run)))
		require.NoError(t, err)

		lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
		assert.Equal(t, "stage one for "+u.Run, lines[1])

		switch u.Run {
		case "101":
			assert.Equal(t, StateDone, out.State)
			assert.Equal(t, "[Run 101] All commands completed successfully.", lines[len(lines)-1])
		case "102":
			assert.Equal(t, StateFailed, out.State)
			assert.Equal(t, 1, out.FailedStage)
			assert.Equal(t, "[Run 102] ERROR: Command failed with exit code 7", lines[len(lines)-1])
		}
	}
}

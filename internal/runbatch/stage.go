// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/mitchellh/go-homedir"
)

const (
	maxBufferSize = 8 * 1024 * 1024 // 8MB
	readChunkSize = 32 * 1024
)

var (
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrCommandNotFound is returned when the program cannot be found.
	ErrCommandNotFound = errors.New("command not found")
	// ErrFailedToCreatePipe is returned when the operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrTimeoutExceeded is returned when the process was killed because the deadline passed.
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	// ErrCancelled is returned when the process was killed because the context was cancelled.
	ErrCancelled = errors.New("cancelled")
	// ErrTerminatedBySignal is returned when the process ended without an exit code.
	ErrTerminatedBySignal = errors.New("terminated by signal")
)

// StageRunner runs a single stage and streams its output to w.
type StageRunner interface {
	Run(ctx context.Context, stage workunit.Stage, w io.Writer) StageResult
}

// StageResult is the outcome of one stage process.
type StageResult struct {
	ExitCode  int           // process exit code, -1 when it could not be started or was killed
	Err       error         // launch or kill error, nil for a normal exit whatever the code
	Output    []byte        // merged stdout and stderr, only when capture is enabled
	Truncated bool          // captured output hit the size limit
	WriteErr  error         // error writing to the destination, the process still ran to completion
	Duration  time.Duration // wall time of the process
}

// Succeeded reports whether the process ran and exited with code 0.
func (r StageResult) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0
}

// LaunchFailed reports whether the process never started.
func (r StageResult) LaunchFailed() bool {
	return errors.Is(r.Err, ErrCouldNotStartProcess)
}

var _ StageRunner = (*Executor)(nil)

// Executor starts stage processes directly, without a shell.
type Executor struct {
	Timeout time.Duration // per stage deadline, zero means none
	Capture bool          // keep the merged output in the result
}

// Run starts the stage program, waits for it to exit and returns its result.
// Stdout and stderr share one pipe so the stream keeps the order the process wrote it in.
// When ctx is done the process is killed.
// Output is read until every holder of the pipe has closed it, so a background child that
// outlives the stage keeps Run waiting until ctx ends; set Timeout to bound it.
func (e *Executor) Run(ctx context.Context, stage workunit.Stage, w io.Writer) StageResult {
	logger := ctxlog.Logger(ctx).With("stage", stage.Label())

	if w == nil {
		w = io.Discard
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	res := StageResult{ExitCode: -1}

	path, args, cwd, err := resolve(stage)
	if err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, err)
		return res
	}

	if ctx.Err() != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, killReason(ctx))
		return res
	}

	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(stage.Env)) {
		env = append(env, fmt.Sprintf("%s=%s", k, stage.Env[k]))
	}

	stdin, err := os.Open(os.DevNull)
	if err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, err)
		return res
	}
	defer stdin.Close() //nolint:errcheck

	rOut, wOut, err := os.Pipe()
	if err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, ErrFailedToCreatePipe, err)
		return res
	}
	defer rOut.Close() //nolint:errcheck

	logger.Debug("starting process", "path", path, "args", args, "cwd", cwd)

	startTime := time.Now()

	ps, err := os.StartProcess(path, slices.Concat([]string{filepath.Base(path)}, args), &os.ProcAttr{
		Dir:   cwd,
		Env:   env,
		Files: []*os.File{stdin, wOut, wOut},
	})

	// The child holds its own copy of the write end, ours must go so the reader sees EOF.
	_ = wOut.Close()

	if err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, err)
		return res
	}

	logger.Debug("process started", "pid", ps.Pid)

	capture := &capBuffer{limit: maxBufferSize, enabled: e.Capture}
	readDone := make(chan error, 1)

	go func() {
		readDone <- pump(rOut, w, capture)
	}()

	done := make(chan struct{})
	killed := make(chan error, 1)

	// watchdog: kill the process when the context ends
	go func() {
		select {
		case <-ctx.Done():
			logger.Info("context done, killing process", "pid", ps.Pid)
			killed <- killReason(ctx)
			killPs(ctx, ps)
		case <-done:
			killed <- nil
		}
	}()

	state, waitErr := ps.Wait()
	close(done)

	killErr := <-killed

	// Descendants may still hold the pipe open, stop waiting for them once the context ends.
	select {
	case res.WriteErr = <-readDone:
	case <-ctx.Done():
		_ = rOut.Close()
		res.WriteErr = <-readDone
	}

	res.Duration = time.Since(startTime)
	res.Output = capture.Bytes()
	res.Truncated = capture.truncated

	switch {
	case killErr != nil:
		res.Err = killErr
		res.ExitCode = -1
	case waitErr != nil:
		res.Err = waitErr
		res.ExitCode = -1
	default:
		res.ExitCode = state.ExitCode()
		if res.ExitCode == -1 {
			res.Err = fmt.Errorf("%w: %s", ErrTerminatedBySignal, state.String())
		}
	}

	if res.Truncated {
		logger.Debug("captured output truncated", "maxBytes", maxBufferSize)
	}

	logger.Debug("process finished", "exitCode", res.ExitCode, "duration", res.Duration)

	return res
}

// resolve expands home directories and finds the program on PATH when it has no separator.
func resolve(stage workunit.Stage) (string, []string, string, error) {
	prog, err := expandHome(stage.Command.Program)
	if err != nil {
		return "", nil, "", err //nolint:wrapcheck
	}

	path, err := exec.LookPath(prog)
	if err != nil {
		return "", nil, "", errors.Join(ErrCommandNotFound, err)
	}

	args := make([]string, len(stage.Command.Args))

	for i, a := range stage.Command.Args {
		if args[i], err = expandHome(a); err != nil {
			return "", nil, "", err //nolint:wrapcheck
		}
	}

	cwd, err := expandHome(stage.Cwd)
	if err != nil {
		return "", nil, "", err //nolint:wrapcheck
	}

	return path, args, cwd, nil
}

// expandHome expands a leading "~" or "~/", other values are returned unchanged.
func expandHome(s string) (string, error) {
	if s != "~" && !strings.HasPrefix(s, "~/") && !strings.HasPrefix(s, `~\`) {
		return s, nil
	}

	return homedir.Expand(s) //nolint:wrapcheck
}

// pump copies r to w and the capture buffer until EOF.
// After a write error on w the pipe is still drained so the process never blocks on a full pipe.
func pump(r io.Reader, w io.Writer, capture *capBuffer) error {
	var writeErr error

	buf := make([]byte, readChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			capture.Write(buf[:n]) //nolint:errcheck

			if writeErr == nil {
				_, writeErr = w.Write(buf[:n])
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return writeErr
			}

			return errors.Join(writeErr, err)
		}
	}
}

func killReason(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeoutExceeded
	}

	return ErrCancelled
}

// killPs kills the process, a process that already exited is not an error.
func killPs(ctx context.Context, ps *os.Process) {
	if err := ps.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			ctxlog.Debug(ctx, "process already done", "pid", ps.Pid)
			return
		}

		ctxlog.Error(ctx, "process kill error", "pid", ps.Pid, "error", err)

		return
	}

	ctxlog.Info(ctx, "process killed", "pid", ps.Pid)
}

// capBuffer keeps at most limit bytes.
type capBuffer struct {
	buf       []byte
	limit     int
	enabled   bool
	truncated bool
}

func (c *capBuffer) Write(p []byte) (int, error) {
	if !c.enabled {
		return len(p), nil
	}

	room := c.limit - len(c.buf)
	if len(p) > room {
		c.truncated = true
		p = p[:max(room, 0)]
	}

	c.buf = append(c.buf, p...)

	return len(p), nil
}

func (c *capBuffer) Bytes() []byte {
	return c.buf
}

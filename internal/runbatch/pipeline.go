// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/progress"
	"github.com/matt-FFFFFF/runfarm/internal/teereader"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/spf13/afero"
)

const (
	logDirPerm  = 0o755
	logFilePerm = 0o644
	logFileExt  = ".log"
)

var (
	// ErrOpenLog is returned when the unit log file cannot be created or opened.
	ErrOpenLog = errors.New("cannot open unit log")
	// ErrWriteLog is returned when a status line cannot be written to the unit log.
	ErrWriteLog = errors.New("cannot write unit log")
)

// FS is the filesystem unit logs are written to.
var FS = afero.NewOsFs()

// UnitRunner runs every stage of a work unit.
type UnitRunner interface {
	Run(ctx context.Context, unit workunit.WorkUnit) (Outcome, error)
}

var _ UnitRunner = (*Pipeline)(nil)

// Pipeline runs the stages of a unit in order and stops at the first failure.
// Everything is recorded in one log file per unit.
type Pipeline struct {
	Stages    StageRunner       // defaults to an Executor
	LogDir    string            // directory for unit logs, created when missing
	LogPrefix string            // prefix of every log file name
	Console   io.Writer         // optional echo of the Executing lines
	Reporter  progress.Reporter // optional live progress
}

// LogPath returns the log file of the unit.
func (p *Pipeline) LogPath(unit workunit.WorkUnit) string {
	return filepath.Join(p.LogDir, p.LogPrefix+unit.ID+logFileExt)
}

// Run executes the stages of unit one after another.
// A stage that cannot start or exits nonzero ends the pipeline with a failed outcome.
// The error is reserved for problems with the unit log itself.
func (p *Pipeline) Run(ctx context.Context, unit workunit.WorkUnit) (Outcome, error) {
	logger := ctxlog.Logger(ctx).With("unit", unit.ID)
	ctx = ctxlog.New(ctx, logger)
	reporter := progress.OrNull(p.Reporter)

	runner := p.Stages
	if runner == nil {
		runner = &Executor{}
	}

	start := time.Now()
	out := Outcome{
		UnitID:      unit.ID,
		State:       StateRunning,
		FailedStage: -1,
		LogPath:     p.LogPath(unit),
	}

	if p.LogDir != "" {
		if err := FS.MkdirAll(p.LogDir, logDirPerm); err != nil {
			return out, errors.Join(ErrOpenLog, err)
		}
	}

	logFile, err := FS.OpenFile(out.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerm)
	if err != nil {
		return out, errors.Join(ErrOpenLog, err)
	}
	defer logFile.Close() //nolint:errcheck

	logger.Debug("pipeline started", "log", out.LogPath, "stages", len(unit.Stages))

	for _, stage := range unit.Stages {
		out.CurrentStage = stage.Ordinal

		header := fmt.Sprintf("[Run %s] Executing: %s\n", unit.ID, stage.Command)
		if err := writeLine(logFile, header); err != nil {
			return out, err
		}

		if p.Console != nil {
			fmt.Fprint(p.Console, header) //nolint:errcheck
		}

		reporter.Report(progress.Event{
			UnitID:    unit.ID,
			Type:      progress.EventStageStarted,
			Message:   stage.Command.String(),
			Timestamp: time.Now(),
			Data:      progress.EventData{Stage: stage.Label(), StageOrdinal: stage.Ordinal},
		})

		tee := teereader.NewLastLineTeeWriter(logFile, func(line string) {
			reporter.Report(progress.Event{
				UnitID:    unit.ID,
				Type:      progress.EventOutput,
				Timestamp: time.Now(),
				Data:      progress.EventData{Stage: stage.Label(), StageOrdinal: stage.Ordinal, OutputLine: line},
			})
		})

		res := runner.Run(ctx, stage, tee)
		out.Output = append(out.Output, res.Output...)

		if res.WriteErr != nil {
			logger.Warn("stage output not fully written to log", "stage", stage.Label(), "error", res.WriteErr)
		}

		if tee.GetPartialLine() != "" {
			// keep the next header on its own line
			if err := writeLine(logFile, "\n"); err != nil {
				return out, err
			}
		}

		if res.Succeeded() {
			continue
		}

		var msg string

		if res.LaunchFailed() {
			msg = fmt.Sprintf("[Run %s] ERROR: Command could not be started: %s\n", unit.ID, errString(res.Err))
		} else {
			msg = fmt.Sprintf("[Run %s] ERROR: Command failed with exit code %d\n", unit.ID, res.ExitCode)
		}

		if err := writeLine(logFile, msg); err != nil {
			return out, err
		}

		out.State = StateFailed
		out.FailedStage = stage.Ordinal
		out.FailedStageName = stage.Label()
		out.ExitCode = res.ExitCode
		out.Err = res.Err
		out.Duration = time.Since(start)

		logger.Debug("pipeline failed", "stage", stage.Label(), "exitCode", res.ExitCode, "error", res.Err)

		reporter.Report(progress.Event{
			UnitID:    unit.ID,
			Type:      progress.EventFailed,
			Message:   stage.Label(),
			Timestamp: time.Now(),
			Data: progress.EventData{
				Stage:        stage.Label(),
				StageOrdinal: stage.Ordinal,
				ExitCode:     res.ExitCode,
				Error:        res.Err,
				LogPath:      out.LogPath,
			},
		})

		return out, nil
	}

	if err := writeLine(logFile, fmt.Sprintf("[Run %s] All commands completed successfully.\n", unit.ID)); err != nil {
		return out, err
	}

	out.State = StateDone
	out.Duration = time.Since(start)

	logger.Debug("pipeline completed", "duration", out.Duration)

	reporter.Report(progress.Event{
		UnitID:    unit.ID,
		Type:      progress.EventCompleted,
		Timestamp: time.Now(),
		Data:      progress.EventData{LogPath: out.LogPath},
	})

	return out, nil
}

// writeLine writes s in a single call so it reaches the file before the next stage starts.
func writeLine(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return errors.Join(ErrWriteLog, err)
	}

	return nil
}

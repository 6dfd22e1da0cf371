// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package sweep implements the command that runs a parameter sweep and tabulates its output.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/matt-FFFFFF/runfarm/cmd/runfarm/clicommon"
	"github.com/matt-FFFFFF/runfarm/internal/aggregate"
	"github.com/matt-FFFFFF/runfarm/internal/batch"
	"github.com/matt-FFFFFF/runfarm/internal/config"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/runbatch"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/urfave/cli/v3"
)

const (
	sweepFlag = "sweep"
	outFlag   = "out"
)

// SweepCmd runs every run and selector combination and writes one CSV row per unit.
var SweepCmd = Command()

// Command builds a new sweep command with fresh flags.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run a parameter sweep and collect the results into a CSV table",
		Description: `Run the stages of a named sweep for every combination of run,
cut selector and focal plane selector. The output of each unit is parsed for the
run number, cut type, cut counters and output file, and written as one row of the
CSV table given by --out. Values that are not found are written as NA.`,
		Flags: slices.Concat(
			[]cli.Flag{
				clicommon.FileFlagDef(),
				&cli.StringFlag{
					Name:     sweepFlag,
					Aliases:  []string{"s"},
					Usage:    "Name of the sweep, defaults to the table default",
					OnlyOnce: true,
				},
				&cli.StringFlag{
					Name:      outFlag,
					Aliases:   []string{"o"},
					Usage:     "CSV file to write, defaults to the sweep setting",
					TakesFile: true,
					OnlyOnce:  true,
				},
			},
			clicommon.RunsFlags(),
			clicommon.BatchFlags(),
		),
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	ctx = ctxlog.New(ctx, logger)

	file, err := clicommon.LoadConfig(ctx, cmd)
	if err != nil {
		return err //nolint:wrapcheck
	}

	sweep, err := file.Sweep(cmd.String(sweepFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	runs, err := clicommon.Runs(ctx, cmd, sweep.Runs)
	if err != nil {
		return err //nolint:wrapcheck
	}

	jobs, err := clicommon.Jobs(cmd, sweep.JobsOrDefault())
	if err != nil {
		return err //nolint:wrapcheck
	}

	units, err := workunit.CrossProduct(runs, sweep.Axes(), sweep.Templates())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	out := cmd.String(outFlag)
	if out == "" {
		out = sweep.OutputOrDefault()
	}

	sink, err := aggregate.NewSink(ctx, out)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	summary, err := batch.Execute(ctx, cmd.Writer, batch.Options{
		Title:        sweep.Name,
		Units:        units,
		Jobs:         jobs,
		LogDir:       cmd.String(clicommon.LogDirFlag),
		LogPrefix:    sweep.LogPrefix,
		StageTimeout: cmd.Duration(clicommon.StageTimeoutFlag),
		Capture:      true,
		TUI:          cmd.Bool(clicommon.TUIFlag),
		Quiet:        cmd.Bool(clicommon.QuietFlag),
		OnReport:     Collect(sink),
	})

	err = errors.Join(err, sink.Close())

	logger.Info("results written", "path", sink.Path(), "rows", sink.Rows())

	return clicommon.Finish(ctx, cmd, summary, err)
}

// Collect returns a report handler that appends the record of every unit that ran to sink.
// Units that ended in an exception produced no output and get no row.
func Collect(sink *aggregate.Sink) batch.ReportFunc {
	return func(ctx context.Context, rep runbatch.Report) error {
		if rep.Status == runbatch.StatusException {
			ctxlog.Warn(ctx, "no result row for unit", "unit", rep.Unit.ID, "error", rep.Err)
			return nil
		}

		rec := Record(rep)

		if logger := ctxlog.Logger(ctx); logger.Enabled(ctx, slog.LevelDebug) {
			logger.Debug("filtered output",
				"unit", rep.Unit.ID,
				"label", rec.Run,
				"output", aggregate.StripProgress(string(rep.Outcome.Output)),
			)
		}

		return sink.Append(ctx, rec) //nolint:wrapcheck
	}
}

// Record extracts the result row of one unit.
func Record(rep runbatch.Report) aggregate.Record {
	cut, _ := rep.Unit.Params.Get(config.CutParam)
	fp, _ := rep.Unit.Params.Get(config.FocalPlaneParam)

	return aggregate.Extract(
		aggregate.Label(rep.Unit.Index),
		string(rep.Outcome.Output),
		aggregate.Selectors{Cut: cut, FocalPlane: fp},
	)
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the command that runs a named pipeline over a list of runs.
package run

import (
	"context"
	"slices"

	"github.com/matt-FFFFFF/runfarm/cmd/runfarm/clicommon"
	"github.com/matt-FFFFFF/runfarm/internal/batch"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/urfave/cli/v3"
)

const (
	pipelineFlag    = "pipeline"
	splitStagesFlag = "split-stages"
)

// RunCmd runs every stage of a pipeline for each run.
var RunCmd = Command()

// Command builds a new run command with fresh flags.
func Command() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a pipeline for each run",
		ArgsUsage: "[RUN...]",
		Description: `Run the stages of a named pipeline, in order, for every run.
Runs are processed concurrently up to --jobs at a time. Within a run a failing stage
stops the pipeline. Each run writes one log file to --log-dir.

Runs come from the arguments, --runs and --run-file. When none are given the runs
configured for the pipeline are used, and on a terminal you are prompted for them.

With --split-stages every stage of every run becomes its own unit and runs
independently of the other stages of the same run.`,
		Flags: slices.Concat(
			[]cli.Flag{
				clicommon.FileFlagDef(),
				&cli.StringFlag{
					Name:     pipelineFlag,
					Aliases:  []string{"p"},
					Usage:    "Name of the pipeline, defaults to the table default",
					OnlyOnce: true,
				},
				&cli.BoolFlag{
					Name:  splitStagesFlag,
					Usage: "Run every stage of every run as an independent unit",
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

	pipeline, err := file.Pipeline(cmd.String(pipelineFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger.Debug("pipeline selected", "pipeline", pipeline.Name, "stages", len(pipeline.Stages))

	runs, err := clicommon.Runs(ctx, cmd, pipeline.Runs)
	if err != nil {
		return err //nolint:wrapcheck
	}

	jobs, err := clicommon.Jobs(cmd, pipeline.JobsOrDefault())
	if err != nil {
		return err //nolint:wrapcheck
	}

	build := workunit.Expand
	if cmd.Bool(splitStagesFlag) {
		build = workunit.SplitStages
	}

	units, err := build(runs, pipeline.Templates())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	summary, err := batch.Execute(ctx, cmd.Writer, batch.Options{
		Title:        pipeline.Name,
		Units:        units,
		Jobs:         jobs,
		LogDir:       cmd.String(clicommon.LogDirFlag),
		LogPrefix:    pipeline.LogPrefix,
		StageTimeout: cmd.Duration(clicommon.StageTimeoutFlag),
		TUI:          cmd.Bool(clicommon.TUIFlag),
		Quiet:        cmd.Bool(clicommon.QuietFlag),
	})

	return clicommon.Finish(ctx, cmd, summary, err)
}

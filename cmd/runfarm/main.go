// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the runfarm command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/runfarm"
	"github.com/matt-FFFFFF/runfarm/cmd/runfarm/run"
	"github.com/matt-FFFFFF/runfarm/cmd/runfarm/show"
	"github.com/matt-FFFFFF/runfarm/cmd/runfarm/sweep"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

// forcedExitCode is the conventional status for a process ended by SIGINT.
const forcedExitCode = 130

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		sweep.SweepCmd,
		show.ShowCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "runfarm",
	Description: `runfarm runs batches of analysis pipelines. Each run, or each run and
parameter combination in a sweep, is an independent unit whose stages run in order
until one fails. Units run concurrently on a bounded pool of workers and every unit
writes its own log file. Sweeps parse the output of each unit into a CSV table.

Set RUNFARM_LOG_LEVEL to DEBUG, INFO, WARN or ERROR to control logging.`,
	Usage:     "runfarm run -p analyze-53ca-au -R runs.txt",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)
	defer signalbroker.Stop(sigCh)

	go signalbroker.Watch(ctx, sigCh, cancel, func() { os.Exit(forcedExitCode) })

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", runfarm.Version, runfarm.Commit)

	err := rootCmd.Run(ctx, os.Args) // Err is handled by cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1) //nolint:gocritic
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}

	ctxlog.Logger(ctx).Info("command completed successfully")
}

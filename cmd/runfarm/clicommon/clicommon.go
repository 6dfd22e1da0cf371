// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package clicommon holds the flags and helpers shared by the batch commands.
package clicommon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/matt-FFFFFF/runfarm/internal/config"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/runbatch"
	"github.com/matt-FFFFFF/runfarm/internal/runlist"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const (
	FileFlag         = "file"
	RunsFlag         = "runs"
	RunFileFlag      = "run-file"
	JobsFlag         = "jobs"
	LogDirFlag       = "log-dir"
	StageTimeoutFlag = "stage-timeout"
	TUIFlag          = "tui"
	QuietFlag        = "quiet"
	StrictFlag       = "strict"

	// DefaultLogDir is where unit logs go when --log-dir is not given.
	DefaultLogDir = "logs"
)

// ErrUnitsFailed is returned with --strict when a unit did not succeed.
var ErrUnitsFailed = errors.New("not every unit succeeded")

var (
	// IsTerminal reports whether runs may be prompted for.
	IsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) } //nolint:gosec
	// PromptRuns asks for runs interactively.
	PromptRuns = runlist.Prompt
)

// FileFlagDef is the pipeline table location flag.
func FileFlagDef() cli.Flag {
	return &cli.StringFlag{
		Name:    FileFlag,
		Aliases: []string{"f"},
		Usage: "URL of the pipeline table, YAML or HCL. " +
			"Supports Hashicorp's go-getter syntax. The built-in table is used when omitted.",
		TakesFile: true,
		OnlyOnce:  true,
	}
}

// RunsFlags select the runs of the batch.
func RunsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    RunsFlag,
			Aliases: []string{"r"},
			Usage:   "Run identifier, repeat or separate with spaces for more than one",
		},
		&cli.StringFlag{
			Name:      RunFileFlag,
			Aliases:   []string{"R"},
			Usage:     "File listing run identifiers, '#' starts a comment",
			TakesFile: true,
			OnlyOnce:  true,
		},
	}
}

// BatchFlags control execution and console output.
func BatchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    JobsFlag,
			Aliases: []string{"j"},
			Usage:   "Number of units run at once, defaults to the pipeline setting",
		},
		&cli.StringFlag{
			Name:      LogDirFlag,
			Aliases:   []string{"l"},
			Usage:     "Directory for the per-unit log files",
			Value:     DefaultLogDir,
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.DurationFlag{
			Name:  StageTimeoutFlag,
			Usage: "Kill a stage that runs longer than this, 0 means no limit",
		},
		&cli.BoolFlag{
			Name:    TUIFlag,
			Aliases: []string{"t", "interactive"},
			Usage:   "Show a live board of every unit instead of status lines",
		},
		&cli.BoolFlag{
			Name:    QuietFlag,
			Aliases: []string{"q"},
			Usage:   "Print only the final summary",
		},
		&cli.BoolFlag{
			Name:  StrictFlag,
			Usage: "Exit with status 1 when any unit did not succeed",
		},
	}
}

// LoadConfig reads the pipeline table named by --file, or the built-in table.
func LoadConfig(ctx context.Context, cmd *cli.Command) (*config.File, error) {
	src := cmd.String(FileFlag)

	f, err := config.Load(ctx, src)
	if err != nil {
		if src == "" {
			src = "built-in table"
		}

		return nil, cli.Exit(fmt.Sprintf("cannot load %s: %s", src, err.Error()), 1)
	}

	return f, nil
}

// Runs resolves the runs from the arguments, --runs and --run-file.
// When none are given the configured defaults are used, then the terminal prompt.
func Runs(ctx context.Context, cmd *cli.Command, defaults []string) ([]string, error) {
	direct := slices.Concat(cmd.StringSlice(RunsFlag), cmd.Args().Slice())

	runs, err := runlist.Resolve(direct, cmd.String(RunFileFlag))

	switch {
	case err == nil:
		return runs, nil
	case !errors.Is(err, runlist.ErrNoRuns):
		return nil, cli.Exit(err.Error(), 1)
	case len(defaults) > 0:
		ctxlog.Debug(ctx, "using configured runs", "runs", defaults)
		return defaults, nil
	case IsTerminal():
		runs, err = PromptRuns(ctx)
		if err != nil {
			return nil, cli.Exit(err.Error(), 1)
		}

		return runs, nil
	default:
		return nil, cli.Exit("no runs given, use --runs, --run-file or arguments", 1)
	}
}

// Jobs returns --jobs when set, otherwise def.
func Jobs(cmd *cli.Command, def int) (int, error) {
	if !cmd.IsSet(JobsFlag) {
		return def, nil
	}

	jobs := cmd.Int(JobsFlag)
	if jobs < 1 {
		return 0, cli.Exit(fmt.Sprintf("--%s must be positive, got %d", JobsFlag, jobs), 1)
	}

	return jobs, nil
}

// Finish turns the batch result into the command result.
// Unit failures only change the exit status with --strict.
func Finish(ctx context.Context, cmd *cli.Command, summary runbatch.Summary, err error) error {
	if err != nil {
		ctxlog.Error(ctx, "batch error", "error", err)
		return cli.Exit(err.Error(), 1)
	}

	if cmd.Bool(StrictFlag) && !summary.AllSucceeded() {
		return cli.Exit(ErrUnitsFailed.Error(), 1)
	}

	return nil
}

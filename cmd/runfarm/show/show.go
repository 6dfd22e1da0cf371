// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package show implements the command that prints the pipeline table and the expanded units.
package show

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/runfarm/cmd/runfarm/clicommon"
	"github.com/matt-FFFFFF/runfarm/internal/config"
	"github.com/matt-FFFFFF/runfarm/internal/schema"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/urfave/cli/v3"
)

const (
	pipelineFlag    = "pipeline"
	sweepFlag       = "sweep"
	splitStagesFlag = "split-stages"
	schemaFlag      = "schema"

	schemaJSON     = "json"
	schemaMarkdown = "markdown"
	schemaTitle    = "runfarm pipeline table"
	schemaDesc     = "Named pipelines and parameter sweeps run by runfarm. " +
		"Arguments may use {run} and, in sweeps, {lcx} and {fid}."
)

// ErrUnknownSchemaFormat is returned for a --schema value other than json or markdown.
var ErrUnknownSchemaFormat = errors.New("unknown schema format")

// ShowCmd prints what a run or sweep would do without running anything.
var ShowCmd = Command()

// Command builds a new show command with fresh flags.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "List the configured pipelines and sweeps, or the commands of each unit",
		Description: `Without --pipeline or --sweep, list the pipelines and sweeps of the table.
With one of them, print every unit and the exact commands its stages would run.
--schema prints the table format as a JSON schema or as markdown.`,
		ArgsUsage: "[RUN...]",
		Flags: append([]cli.Flag{
			clicommon.FileFlagDef(),
			&cli.StringFlag{
				Name:     pipelineFlag,
				Aliases:  []string{"p"},
				Usage:    "Show the units of this pipeline",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     sweepFlag,
				Aliases:  []string{"s"},
				Usage:    "Show the units of this sweep",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:  splitStagesFlag,
				Usage: "Show one unit per run and stage",
			},
			&cli.StringFlag{
				Name:     schemaFlag,
				Usage:    "Print the table schema, json or markdown",
				OnlyOnce: true,
			},
		}, clicommon.RunsFlags()...),
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	if format := cmd.String(schemaFlag); format != "" {
		if err := writeSchema(cmd.Writer, format); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		return nil
	}

	file, err := clicommon.LoadConfig(ctx, cmd)
	if err != nil {
		return err //nolint:wrapcheck
	}

	var (
		units []workunit.WorkUnit
		title string
	)

	switch {
	case cmd.IsSet(sweepFlag):
		sweep, err := file.Sweep(cmd.String(sweepFlag))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		runs, err := clicommon.Runs(ctx, cmd, sweep.Runs)
		if err != nil {
			return err //nolint:wrapcheck
		}

		title = fmt.Sprintf("sweep %s, output %s", sweep.Name, sweep.OutputOrDefault())
		units, err = workunit.CrossProduct(runs, sweep.Axes(), sweep.Templates())

		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

	case cmd.IsSet(pipelineFlag):
		pipeline, err := file.Pipeline(cmd.String(pipelineFlag))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		runs, err := clicommon.Runs(ctx, cmd, pipeline.Runs)
		if err != nil {
			return err //nolint:wrapcheck
		}

		build := workunit.Expand
		if cmd.Bool(splitStagesFlag) {
			build = workunit.SplitStages
		}

		title = "pipeline " + pipeline.Name
		units, err = build(runs, pipeline.Templates())

		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

	default:
		return writeTable(cmd.Writer, file) //nolint:wrapcheck
	}

	return writeUnits(cmd.Writer, title, units) //nolint:wrapcheck
}

func writeSchema(w io.Writer, format string) error {
	s, err := schema.Generate(schemaTitle, schemaDesc, config.File{})
	if err != nil {
		return err //nolint:wrapcheck
	}

	switch strings.ToLower(format) {
	case schemaJSON:
		return s.WriteJSON(w) //nolint:wrapcheck
	case schemaMarkdown, "md":
		return s.WriteMarkdown(w) //nolint:wrapcheck
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSchemaFormat, format)
	}
}

// writeTable lists every pipeline and sweep, marking the defaults.
func writeTable(w io.Writer, f *config.File) error {
	sb := strings.Builder{}
	sb.WriteString("Pipelines:\n")

	for _, name := range f.PipelineNames() {
		p, _ := f.Pipeline(name)
		fmt.Fprintf(&sb, "  %s%s  %d stages, jobs %d", name, defaultMark(name, f.DefaultPipeline), len(p.Stages), p.JobsOrDefault())

		if p.Description != "" {
			fmt.Fprintf(&sb, "  %s", p.Description)
		}

		sb.WriteString("\n")
	}

	sb.WriteString("Sweeps:\n")

	for _, name := range f.SweepNames() {
		s, _ := f.Sweep(name)
		fmt.Fprintf(&sb, "  %s%s  %d stages, jobs %d, output %s",
			name, defaultMark(name, f.DefaultSweep), len(s.Stages), s.JobsOrDefault(), s.OutputOrDefault())

		if s.Description != "" {
			fmt.Fprintf(&sb, "  %s", s.Description)
		}

		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())

	return err //nolint:wrapcheck
}

// writeUnits prints each unit and the command line of each of its stages.
func writeUnits(w io.Writer, title string, units []workunit.WorkUnit) error {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%s: %d units\n", title, len(units))

	for _, u := range units {
		fmt.Fprintf(&sb, "[Run %s]\n", u.ID)

		for _, s := range u.Stages {
			fmt.Fprintf(&sb, "  %d. %s: %s\n", s.Ordinal+1, s.Label(), s.Command)
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err //nolint:wrapcheck
}

func defaultMark(name, def string) string {
	if name == def {
		return " (default)"
	}

	return ""
}

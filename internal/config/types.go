// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"strconv"

	"github.com/matt-FFFFFF/runfarm/internal/workunit"
)

const (
	// CutParam is the placeholder bound to the cut selector of a sweep.
	CutParam = "lcx"
	// FocalPlaneParam is the placeholder bound to the focal plane selector of a sweep.
	FocalPlaneParam = "fid"

	// DefaultRunJobs is the pool size of a pipeline that does not set one.
	DefaultRunJobs = 8
	// DefaultSweepJobs is the pool size of a sweep that does not set one.
	DefaultSweepJobs = 30
	// DefaultSweepOutput is the CSV file of a sweep that does not set one.
	DefaultSweepOutput = "burning_giraffe_results.csv"
)

// File is a table of pipeline and sweep templates.
type File struct {
	DefaultPipeline string     `yaml:"default_pipeline,omitempty" hcl:"default_pipeline,optional" docdesc:"Pipeline used when none is named on the command line"` //nolint:lll
	DefaultSweep    string     `yaml:"default_sweep,omitempty" hcl:"default_sweep,optional" docdesc:"Sweep used when none is named on the command line"`             //nolint:lll
	Pipelines       []Pipeline `yaml:"pipelines,omitempty" hcl:"pipeline,block" docdesc:"Named per-run pipelines"`                                                  //nolint:lll
	Sweeps          []Sweep    `yaml:"sweeps,omitempty" hcl:"sweep,block" docdesc:"Named parameter sweeps whose output is aggregated into a CSV table"`             //nolint:lll
}

// Stage is one external command of a pipeline. Placeholders such as {run} are substituted per unit.
type Stage struct {
	Name             string            `yaml:"name" hcl:"name,label" docdesc:"Stage name, used in progress output and split-stage log names"`            //nolint:lll
	Program          string            `yaml:"program" hcl:"program" docdesc:"Program to run, looked up on PATH when it has no path separator"`          //nolint:lll
	Args             []string          `yaml:"args,omitempty" hcl:"args,optional" docdesc:"Arguments, each passed to the program as one argument"`       //nolint:lll
	Env              map[string]string `yaml:"env,omitempty" hcl:"env,optional" docdesc:"Extra environment variables"`                                   //nolint:lll
	WorkingDirectory string            `yaml:"working_directory,omitempty" hcl:"working_directory,optional" docdesc:"Directory the program runs in"`     //nolint:lll
}

// Pipeline is an ordered list of stages run once per run.
type Pipeline struct {
	Name        string   `yaml:"name" hcl:"name,label" docdesc:"Pipeline name"`                                                   //nolint:lll
	Description string   `yaml:"description,omitempty" hcl:"description,optional" docdesc:"What the pipeline does"`               //nolint:lll
	LogPrefix   string   `yaml:"log_prefix,omitempty" hcl:"log_prefix,optional" docdesc:"Prefix of the per-unit log file names"` //nolint:lll
	Jobs        int      `yaml:"jobs,omitempty" hcl:"jobs,optional" docdesc:"Default number of units run at once"`                //nolint:lll
	Runs        []string `yaml:"runs,omitempty" hcl:"runs,optional" docdesc:"Runs used when none are given on the command line"` //nolint:lll
	Stages      []Stage  `yaml:"stages" hcl:"stage,block" docdesc:"Stages, run in order until one fails"`                        //nolint:lll
}

// Sweep runs a pipeline for every combination of cut and focal plane selector and aggregates the output.
type Sweep struct {
	Name               string   `yaml:"name" hcl:"name,label" docdesc:"Sweep name"`                                                                   //nolint:lll
	Description        string   `yaml:"description,omitempty" hcl:"description,optional" docdesc:"What the sweep does"`                               //nolint:lll
	LogPrefix          string   `yaml:"log_prefix,omitempty" hcl:"log_prefix,optional" docdesc:"Prefix of the per-unit log file names"`              //nolint:lll
	Jobs               int      `yaml:"jobs,omitempty" hcl:"jobs,optional" docdesc:"Default number of units run at once"`                             //nolint:lll
	Runs               []string `yaml:"runs,omitempty" hcl:"runs,optional" docdesc:"Runs used when none are given on the command line"`              //nolint:lll
	Output             string   `yaml:"output,omitempty" hcl:"output,optional" docdesc:"CSV file the results are written to"`                         //nolint:lll
	CutSelector        []int    `yaml:"cut_selector" hcl:"cut_selector" docdesc:"Values substituted for {lcx}, -1 means unfiltered"`                 //nolint:lll
	FocalPlaneSelector []int    `yaml:"focal_plane_selector" hcl:"focal_plane_selector" docdesc:"Values substituted for {fid}, -1 means unfiltered"` //nolint:lll
	Stages             []Stage  `yaml:"stages" hcl:"stage,block" docdesc:"Stages, run in order until one fails"`                                     //nolint:lll
}

// templates converts the stages for unit expansion.
func templates(stages []Stage) []workunit.StageTemplate {
	out := make([]workunit.StageTemplate, len(stages))
	for i, s := range stages {
		out[i] = workunit.StageTemplate{
			Name:    s.Name,
			Program: s.Program,
			Args:    s.Args,
			Env:     s.Env,
			Cwd:     s.WorkingDirectory,
		}
	}

	return out
}

// Templates returns the stage templates of the pipeline.
func (p Pipeline) Templates() []workunit.StageTemplate {
	return templates(p.Stages)
}

// JobsOrDefault returns the configured pool size, or DefaultRunJobs.
func (p Pipeline) JobsOrDefault() int {
	if p.Jobs > 0 {
		return p.Jobs
	}

	return DefaultRunJobs
}

// Templates returns the stage templates of the sweep.
func (s Sweep) Templates() []workunit.StageTemplate {
	return templates(s.Stages)
}

// Axes returns the cut selector axis followed by the focal plane selector axis.
func (s Sweep) Axes() []workunit.Axis {
	return []workunit.Axis{
		{Name: CutParam, Values: itoa(s.CutSelector)},
		{Name: FocalPlaneParam, Values: itoa(s.FocalPlaneSelector)},
	}
}

// JobsOrDefault returns the configured pool size, or DefaultSweepJobs.
func (s Sweep) JobsOrDefault() int {
	if s.Jobs > 0 {
		return s.Jobs
	}

	return DefaultSweepJobs
}

// OutputOrDefault returns the configured CSV path, or DefaultSweepOutput.
func (s Sweep) OutputOrDefault() string {
	if s.Output != "" {
		return s.Output
	}

	return DefaultSweepOutput
}

func itoa(vs []int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strconv.Itoa(v)
	}

	return out
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
)

var (
	// ErrDuplicateName is returned when two pipelines, sweeps or stages share a name.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrNegativeJobs is returned when jobs is below zero.
	ErrNegativeJobs = errors.New("jobs must not be negative")
	// ErrUnknownDefault is returned when a default names an entry that does not exist.
	ErrUnknownDefault = errors.New("default refers to an unknown entry")
)

// placeholder values used to check templates before any run is known
const (
	checkRun   = "0"
	checkValue = "0"
)

// Validate reports every problem in the table at once.
func (f *File) Validate() error {
	var result error

	seen := make(map[string]bool)

	for i, p := range f.Pipelines {
		where := fmt.Sprintf("pipeline %q", p.Name)
		if p.Name == "" {
			where = fmt.Sprintf("pipeline #%d", i+1)
			result = multierror.Append(result, fmt.Errorf("%s: %w: name", where, ErrMissingField))
		} else if seen["p:"+p.Name] {
			result = multierror.Append(result, fmt.Errorf("%s: %w", where, ErrDuplicateName))
		}

		seen["p:"+p.Name] = true

		if p.Jobs < 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %w", where, ErrNegativeJobs))
		}

		result = appendErrs(result, validateStages(where, p.Stages, map[string]string{workunit.RunVar: checkRun}))
	}

	for i, s := range f.Sweeps {
		where := fmt.Sprintf("sweep %q", s.Name)
		if s.Name == "" {
			where = fmt.Sprintf("sweep #%d", i+1)
			result = multierror.Append(result, fmt.Errorf("%s: %w: name", where, ErrMissingField))
		} else if seen["s:"+s.Name] {
			result = multierror.Append(result, fmt.Errorf("%s: %w", where, ErrDuplicateName))
		}

		seen["s:"+s.Name] = true

		if s.Jobs < 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %w", where, ErrNegativeJobs))
		}

		if len(s.CutSelector) == 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %w: cut_selector", where, ErrMissingField))
		}

		if len(s.FocalPlaneSelector) == 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %w: focal_plane_selector", where, ErrMissingField))
		}

		vars := map[string]string{workunit.RunVar: checkRun, CutParam: checkValue, FocalPlaneParam: checkValue}
		result = appendErrs(result, validateStages(where, s.Stages, vars))
	}

	if f.DefaultPipeline != "" && !seen["p:"+f.DefaultPipeline] {
		result = multierror.Append(result, fmt.Errorf("default_pipeline %q: %w", f.DefaultPipeline, ErrUnknownDefault))
	}

	if f.DefaultSweep != "" && !seen["s:"+f.DefaultSweep] {
		result = multierror.Append(result, fmt.Errorf("default_sweep %q: %w", f.DefaultSweep, ErrUnknownDefault))
	}

	if result != nil {
		if me, ok := result.(*multierror.Error); ok {
			me.ErrorFormat = listFormat
		}
	}

	return result
}

func validateStages(where string, stages []Stage, vars map[string]string) error {
	var result error

	if len(stages) == 0 {
		return fmt.Errorf("%s: %w", where, workunit.ErrNoStages)
	}

	names := make(map[string]bool)

	for i, s := range stages {
		if s.Name != "" {
			if names[s.Name] {
				result = multierror.Append(result, fmt.Errorf("%s: stage %q: %w", where, s.Name, ErrDuplicateName))
			}

			names[s.Name] = true
		}

		t := templates([]Stage{s})[0]
		if _, err := t.Render(i, vars); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: stage %d: %w", where, i+1, err))
		}
	}

	return result
}

// appendErrs flattens err into result.
func appendErrs(result, err error) error {
	if err == nil {
		return result
	}

	return multierror.Append(result, err)
}

func listFormat(errs []error) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = "  * " + e.Error()
	}

	return fmt.Sprintf("%d problem(s):\n%s", len(errs), strings.Join(lines, "\n"))
}

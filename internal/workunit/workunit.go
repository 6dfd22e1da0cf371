// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package workunit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoStages is returned when a unit would have an empty pipeline.
	ErrNoStages = errors.New("no stages")
	// ErrDuplicateUnit is returned when two units would share an ID, and with it a log file.
	ErrDuplicateUnit = errors.New("duplicate work unit")
)

// Param is one named parameter value of a sweep unit.
type Param struct {
	Name  string
	Value string
}

// Params is the ordered parameter tuple of a unit.
type Params []Param

// Get returns the value of the named parameter.
func (p Params) Get(name string) (string, bool) {
	for _, v := range p {
		if v.Name == name {
			return v.Value, true
		}
	}

	return "", false
}

// Key joins the parameters into a file name friendly suffix, e.g. "lcx1_fid3".
func (p Params) Key() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = v.Name + v.Value
	}

	return strings.Join(parts, "_")
}

// WorkUnit is one independent unit of work: a run, its parameters and its pipeline.
type WorkUnit struct {
	ID     string // unique key, used in status lines and the log file name
	Run    string // the run identifier substituted for {run}
	Index  int    // one based submission index
	Params Params
	Stages []Stage
}

// New renders the templates for one run and parameter tuple.
func New(index int, run string, params Params, templates []StageTemplate) (WorkUnit, error) {
	if len(templates) == 0 {
		return WorkUnit{}, ErrNoStages
	}

	if err := validateValue("run", run); err != nil {
		return WorkUnit{}, err
	}

	vars := map[string]string{RunVar: run}

	for _, p := range params {
		if err := validateValue("parameter "+p.Name, p.Value); err != nil {
			return WorkUnit{}, err
		}

		vars[p.Name] = p.Value
	}

	stages := make([]Stage, len(templates))

	for i, t := range templates {
		s, err := t.Render(i, vars)
		if err != nil {
			return WorkUnit{}, fmt.Errorf("run %s: %w", run, err)
		}

		stages[i] = s
	}

	id := run
	if len(params) > 0 {
		id = run + "_" + params.Key()
	}

	return WorkUnit{
		ID:     id,
		Run:    run,
		Index:  index,
		Params: params,
		Stages: stages,
	}, nil
}

// Expand builds one unit per run, each with the full pipeline.
func Expand(runs []string, templates []StageTemplate) ([]WorkUnit, error) {
	units := make([]WorkUnit, 0, len(runs))

	for i, run := range runs {
		u, err := New(i+1, run, nil, templates)
		if err != nil {
			return nil, err
		}

		units = append(units, u)
	}

	if err := unique(units); err != nil {
		return nil, err
	}

	return units, nil
}

// SplitStages builds one single-stage unit per run and stage.
// The unit ID combines the run and the stage name so every unit keeps its own log.
func SplitStages(runs []string, templates []StageTemplate) ([]WorkUnit, error) {
	units := make([]WorkUnit, 0, len(runs)*len(templates))

	for _, run := range runs {
		for i, t := range templates {
			u, err := New(len(units)+1, run, nil, []StageTemplate{t})
			if err != nil {
				return nil, err
			}

			name := t.Name
			if name == "" {
				name = fmt.Sprintf("stage%d", i+1)
			}

			u.ID = run + "_" + name
			units = append(units, u)
		}
	}

	if err := unique(units); err != nil {
		return nil, err
	}

	return units, nil
}

// Axis is one parameter and the values it sweeps over.
type Axis struct {
	Name   string
	Values []string
}

// CrossProduct builds one unit per run and combination of axis values.
// The first axis varies slowest.
func CrossProduct(runs []string, axes []Axis, templates []StageTemplate) ([]WorkUnit, error) {
	combos := []Params{nil}

	for _, ax := range axes {
		next := make([]Params, 0, len(combos)*len(ax.Values))

		for _, c := range combos {
			for _, v := range ax.Values {
				p := make(Params, len(c), len(c)+1)
				copy(p, c)
				next = append(next, append(p, Param{Name: ax.Name, Value: v}))
			}
		}

		combos = next
	}

	units := make([]WorkUnit, 0, len(runs)*len(combos))

	for _, run := range runs {
		for _, params := range combos {
			u, err := New(len(units)+1, run, params, templates)
			if err != nil {
				return nil, err
			}

			units = append(units, u)
		}
	}

	if err := unique(units); err != nil {
		return nil, err
	}

	return units, nil
}

// unique returns ErrDuplicateUnit naming the first repeated unit ID.
func unique(units []WorkUnit) error {
	seen := make(map[string]int, len(units))

	for _, u := range units {
		if first, ok := seen[u.ID]; ok {
			return fmt.Errorf("%w: %q (units %d and %d)", ErrDuplicateUnit, u.ID, first, u.Index)
		}

		seen[u.ID] = u.Index
	}

	return nil
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package workunit

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// RunVar is the placeholder name that is replaced with the run identifier.
const RunVar = "run"

var (
	// ErrUnknownPlaceholder is returned when a template references a variable that has no value.
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	// ErrInvalidValue is returned when a run or parameter value cannot be used as a token.
	ErrInvalidValue = errors.New("invalid value")
	// ErrNoProgram is returned when a stage template has no program.
	ErrNoProgram = errors.New("stage has no program")
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// StageTemplate describes one stage before substitution.
type StageTemplate struct {
	Name    string
	Program string
	Args    []string
	Env     map[string]string
	Cwd     string
}

// Stage is one substituted external command at a fixed position in a pipeline.
type Stage struct {
	Ordinal int // zero based position in the pipeline
	Name    string
	Command CommandSpec
	Env     map[string]string
	Cwd     string
}

// Label returns the stage name, or a positional name when it has none.
func (s Stage) Label() string {
	if s.Name == "" {
		return fmt.Sprintf("stage %d", s.Ordinal+1)
	}

	return s.Name
}

// Substitute replaces every {name} placeholder in tmpl with vars[name].
// All unknown placeholders are reported in one error.
func Substitute(tmpl string, vars map[string]string) (string, error) {
	var unknown []string

	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]

		v, ok := vars[name]
		if !ok {
			unknown = append(unknown, name)
			return m
		}

		return v
	})

	if len(unknown) > 0 {
		return "", fmt.Errorf("%w: %s in %q", ErrUnknownPlaceholder, strings.Join(unknown, ", "), tmpl)
	}

	return out, nil
}

// Render substitutes vars into every field of the template.
func (t StageTemplate) Render(ordinal int, vars map[string]string) (Stage, error) {
	if strings.TrimSpace(t.Program) == "" {
		return Stage{}, fmt.Errorf("%w: %q", ErrNoProgram, t.Name)
	}

	prog, err := Substitute(t.Program, vars)
	if err != nil {
		return Stage{}, err
	}

	args := make([]string, len(t.Args))

	for i, a := range t.Args {
		if args[i], err = Substitute(a, vars); err != nil {
			return Stage{}, err
		}
	}

	var env map[string]string

	if len(t.Env) > 0 {
		env = make(map[string]string, len(t.Env))

		for _, k := range slices.Sorted(maps.Keys(t.Env)) {
			if env[k], err = Substitute(t.Env[k], vars); err != nil {
				return Stage{}, err
			}
		}
	}

	cwd, err := Substitute(t.Cwd, vars)
	if err != nil {
		return Stage{}, err
	}

	return Stage{
		Ordinal: ordinal,
		Name:    t.Name,
		Command: CommandSpec{Program: prog, Args: args},
		Env:     env,
		Cwd:     cwd,
	}, nil
}

// validateValue rejects values that cannot be used both as a single argument and as part of a log file name.
func validateValue(what, v string) error {
	switch {
	case v == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidValue, what)
	case strings.ContainsFunc(v, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }):
		return fmt.Errorf("%w: %s %q contains whitespace", ErrInvalidValue, what, v)
	case strings.ContainsAny(v, `/\`):
		return fmt.Errorf("%w: %s %q contains a path separator", ErrInvalidValue, what, v)
	}

	return nil
}

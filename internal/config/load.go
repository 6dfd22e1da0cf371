// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

const (
	hclExt      = ".hcl"
	builtinName = "builtin.yaml"
)

var (
	// ErrParse is returned when a table cannot be decoded.
	ErrParse = errors.New("cannot parse pipeline table")
	// ErrInvalid is returned when a decoded table fails validation.
	ErrInvalid = errors.New("invalid pipeline table")
	// ErrNotFound is returned when a named pipeline or sweep does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when no name was given and no default applies.
	ErrAmbiguous = errors.New("no name given and no default")
)

//go:embed builtin.yaml
var builtinYAML []byte

// FS is the filesystem local tables are read from.
var FS = afero.NewOsFs()

// Builtin returns the table compiled into the binary.
func Builtin() (*File, error) {
	return Parse(builtinName, builtinYAML)
}

// Load reads the table at src. An empty src returns the built-in table.
// Local files are read directly, anything else is fetched with go-getter.
func Load(ctx context.Context, src string) (*File, error) {
	if src == "" {
		ctxlog.Debug(ctx, "using built-in pipeline table")
		return Builtin()
	}

	data, name, err := Fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	return Parse(name, data)
}

// Parse decodes and validates a table. The name selects the format: HCL for ".hcl", YAML otherwise.
func Parse(name string, data []byte) (*File, error) {
	var (
		f   File
		err error
	)

	if strings.EqualFold(filepath.Ext(name), hclExt) {
		err = hclsimple.Decode(name, data, evalContext(), &f)
	} else {
		err = yaml.UnmarshalWithOptions(data, &f, yaml.DisallowUnknownField())
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
	}

	return &f, nil
}

// evalContext exposes the environment as env.NAME and a few string and list functions to HCL tables.
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}

		env[k] = cty.StringVal(v)
	}

	envVal := cty.EmptyObjectVal
	if len(env) > 0 {
		envVal = cty.ObjectVal(env)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envVal,
		},
		Functions: map[string]function.Function{
			"concat": stdlib.ConcatFunc,
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"lower":  stdlib.LowerFunc,
			"range":  stdlib.RangeFunc,
			"upper":  stdlib.UpperFunc,
		},
	}
}

// PipelineNames returns the pipeline names in table order.
func (f *File) PipelineNames() []string {
	names := make([]string, len(f.Pipelines))
	for i, p := range f.Pipelines {
		names[i] = p.Name
	}

	return names
}

// SweepNames returns the sweep names in table order.
func (f *File) SweepNames() []string {
	names := make([]string, len(f.Sweeps))
	for i, s := range f.Sweeps {
		names[i] = s.Name
	}

	return names
}

// Pipeline returns the named pipeline. An empty name selects the default pipeline,
// or the only pipeline when there is just one.
func (f *File) Pipeline(name string) (Pipeline, error) {
	name, err := pick(name, f.DefaultPipeline, f.PipelineNames(), "pipeline")
	if err != nil {
		return Pipeline{}, err
	}

	i := slices.IndexFunc(f.Pipelines, func(p Pipeline) bool { return p.Name == name })
	if i < 0 {
		return Pipeline{}, fmt.Errorf("pipeline %q %w, available: %s", name, ErrNotFound, strings.Join(f.PipelineNames(), ", "))
	}

	return f.Pipelines[i], nil
}

// Sweep returns the named sweep. An empty name selects the default sweep,
// or the only sweep when there is just one.
func (f *File) Sweep(name string) (Sweep, error) {
	name, err := pick(name, f.DefaultSweep, f.SweepNames(), "sweep")
	if err != nil {
		return Sweep{}, err
	}

	i := slices.IndexFunc(f.Sweeps, func(s Sweep) bool { return s.Name == name })
	if i < 0 {
		return Sweep{}, fmt.Errorf("sweep %q %w, available: %s", name, ErrNotFound, strings.Join(f.SweepNames(), ", "))
	}

	return f.Sweeps[i], nil
}

func pick(name, def string, names []string, kind string) (string, error) {
	switch {
	case name != "":
		return name, nil
	case def != "":
		return def, nil
	case len(names) == 1:
		return names[0], nil
	case len(names) == 0:
		return "", fmt.Errorf("%s %w: table has none", kind, ErrNotFound)
	default:
		return "", fmt.Errorf("%w: choose a %s from %s", ErrAmbiguous, kind, strings.Join(names, ", "))
	}
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"testing"

	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	f, err := Builtin()
	require.NoError(t, err)

	assert.Contains(t, f.PipelineNames(), "analyze-53ca-au")
	assert.Contains(t, f.PipelineNames(), "analyze-50ca-c")
	assert.Contains(t, f.PipelineNames(), "histos-53ca-be")
	assert.Equal(t, []string{"burning-1010"}, f.SweepNames())

	p, err := f.Pipeline("")
	require.NoError(t, err)
	assert.Equal(t, "analyze-53ca-au", p.Name)
	assert.Equal(t, "run_", p.LogPrefix)
	assert.Equal(t, 8, p.JobsOrDefault())

	units, err := workunit.Expand([]string{"1234"}, p.Templates())
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Len(t, units[0].Stages, 2)
	assert.Equal(t,
		"Metamorphosis -i ~/ridf/Gamma25_1234.ridf -o ~/rootfiles/kw/meta_1234.root -s set_53Ca_Au.dat",
		units[0].Stages[0].Command.String())

	h, err := f.Pipeline("histos-53ca-be")
	require.NoError(t, err)
	assert.Len(t, h.Stages, 10)
	assert.Equal(t, "hist_", h.LogPrefix)
	assert.Equal(t, 16, h.JobsOrDefault())
}

func TestBuiltin_BurningSweep(t *testing.T) {
	f, err := Builtin()
	require.NoError(t, err)

	s, err := f.Sweep("")
	require.NoError(t, err)
	assert.Equal(t, "burning_giraffe_results.csv", s.OutputOrDefault())
	assert.Equal(t, 30, s.JobsOrDefault())

	units, err := workunit.CrossProduct(s.Runs, s.Axes(), s.Templates())
	require.NoError(t, err)
	require.Len(t, units, 24)

	first := units[0]
	assert.Equal(t, "1010_lcx1_fid3", first.ID)
	assert.Equal(t,
		"BurningGiraffe -i ./rootfiles/ddas/salva/meta/meta_1010.root "+
			"-o ./rootfiles/ddas/salva/burn/burn_1010_clean_cutf3_lc1.root -tn tr -v 2 -lcx 1 -fid 3",
		first.Stages[0].Command.String())

	last := units[len(units)-1]
	assert.Equal(t, "1010_lcx-1_fid37", last.ID)
}

const hclTable = `
default_pipeline = "echo"

pipeline "echo" {
  log_prefix = "run_"
  jobs       = 2
  runs       = [for i in range(101, 104) : format("%d", i)]

  stage "greet" {
    program = "echo"
    args    = ["hello", "{run}", env.RUNFARM_TEST_TARGET]
    env = {
      TARGET = upper(env.RUNFARM_TEST_TARGET)
    }
  }
}

sweep "scan" {
  cut_selector         = [1, -1]
  focal_plane_selector = [3]

  stage "burn" {
    program = "BurningGiraffe"
    args    = ["-lcx", "{lcx}", "-fid", "{fid}"]
  }
}
`

func TestParse_HCL(t *testing.T) {
	t.Setenv("RUNFARM_TEST_TARGET", "au")

	f, err := Parse("pipelines.hcl", []byte(hclTable))
	require.NoError(t, err)

	p, err := f.Pipeline("")
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Name)
	assert.Equal(t, []string{"101", "102", "103"}, p.Runs)
	assert.Equal(t, 2, p.Jobs)
	require.Len(t, p.Stages, 1)
	assert.Equal(t, "greet", p.Stages[0].Name)
	assert.Equal(t, []string{"hello", "{run}", "au"}, p.Stages[0].Args)
	assert.Equal(t, map[string]string{"TARGET": "AU"}, p.Stages[0].Env)

	s, err := f.Sweep("scan")
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1}, s.CutSelector)
	assert.Equal(t, DefaultSweepOutput, s.OutputOrDefault())
}

func TestParse_HCLSyntaxError(t *testing.T) {
	_, err := Parse("broken.hcl", []byte(`pipeline "x" {`))
	require.ErrorIs(t, err, ErrParse)
}

func TestParse_YAMLUnknownField(t *testing.T) {
	_, err := Parse("table.yaml", []byte("pipelines:\n  - name: a\n    stagez: []\n"))
	require.ErrorIs(t, err, ErrParse)
}

func TestParse_YAMLValid(t *testing.T) {
	f, err := Parse("table.yml", []byte(`
pipelines:
  - name: one
    stages:
      - name: s
        program: /bin/true
        working_directory: ~/data/{run}
`))
	require.NoError(t, err)

	p, err := f.Pipeline("")
	require.NoError(t, err, "a single pipeline is the default")
	assert.Equal(t, DefaultRunJobs, p.JobsOrDefault())
	assert.Equal(t, "~/data/{run}", p.Templates()[0].Cwd)
}

func TestFile_LookupErrors(t *testing.T) {
	f := &File{Pipelines: []Pipeline{{Name: "a"}, {Name: "b"}}}

	_, err := f.Pipeline("")
	require.ErrorIs(t, err, ErrAmbiguous)

	_, err = f.Pipeline("c")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "a, b")

	_, err = f.Sweep("")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Builtin(t *testing.T) {
	f, err := Load(t.Context(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, f.Pipelines)
}

func TestLoad_LocalFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&FS, fs)

	defer stubs.Reset()

	require.NoError(t, afero.WriteFile(fs, "tables/pipelines.yaml", []byte(`
pipelines:
  - name: local
    stages:
      - program: echo
        args: ["{run}"]
`), 0o644))

	f, err := Load(t.Context(), "tables/pipelines.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, f.PipelineNames())
}

func TestLoad_RemoteUsesGetter(t *testing.T) {
	stubs := gostub.Stub(&FS, afero.NewMemMapFs())
	defer stubs.Reset()

	var gotURL string

	stubs.Stub(&getFunc, func(_ context.Context, url string) ([]byte, string, error) {
		gotURL = url
		return []byte(hclTable), "remote.hcl", nil
	})

	t.Setenv("RUNFARM_TEST_TARGET", "be")

	f, err := Load(t.Context(), "git::https://example.com/org/tables.git//remote.hcl?ref=v1")
	require.NoError(t, err)
	assert.Equal(t, "git::https://example.com/org/tables.git//remote.hcl?ref=v1", gotURL)
	assert.Equal(t, []string{"echo"}, f.PipelineNames())
}

func TestFetch_MissingLocalFileGoesToGetter(t *testing.T) {
	stubs := gostub.Stub(&FS, afero.NewMemMapFs())
	defer stubs.Reset()

	called := false

	stubs.Stub(&getFunc, func(context.Context, string) ([]byte, string, error) {
		called = true
		return nil, "", ErrGetConfigFile
	})

	_, _, err := Fetch(t.Context(), "nope.yaml")
	require.ErrorIs(t, err, ErrGetConfigFile)
	assert.True(t, called)

	_, _, err = Fetch(t.Context(), "")
	require.ErrorIs(t, err, ErrGetConfigFile)
}

func TestSplitFileNameFromGetterURL(t *testing.T) {
	tests := []struct {
		url      string
		wantURL  string
		wantFile string
	}{
		{
			url:      "git::https://github.com/org/repo//tables/pipelines.yaml?ref=v1",
			wantURL:  "git::https://github.com/org/repo//tables?ref=v1",
			wantFile: "pipelines.yaml",
		},
		{
			url:      "git::https://github.com/org/repo//pipelines.hcl",
			wantURL:  "git::https://github.com/org/repo",
			wantFile: "pipelines.hcl",
		},
		{
			url: "https://example.com/pipelines.yaml",
		},
		{
			url: "git::https://github.com/org/repo//tables/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, f := splitFileNameFromGetterURL(tt.url)
			assert.Equal(t, tt.wantURL, u)
			assert.Equal(t, tt.wantFile, f)
		})
	}
}

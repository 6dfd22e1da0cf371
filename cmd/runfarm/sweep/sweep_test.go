// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/matt-FFFFFF/runfarm/internal/aggregate"
	"github.com/matt-FFFFFF/runfarm/internal/color"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/matt-FFFFFF/runfarm/internal/runbatch"
	"github.com/matt-FFFFFF/runfarm/internal/workunit"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

const testTable = `default_sweep: scan
sweeps:
  - name: scan
    runs: ["1010"]
    jobs: 4
    log_prefix: burn_
    output: results.csv
    cut_selector: [1, -1]
    focal_plane_selector: [3]
    stages:
      - name: burning
        program: /bin/sh
        args:
          - -c
          - >-
            echo 'Run Number: {run}';
            echo 'Loaded PID cut for FocalPlane 7';
            echo ' 50 % done';
            echo 'Cut Applied 50Ca20 in PID 2: 40';
            echo 'Total 50Ca20 in PID 2: 200';
            echo 'output file: /data/out/res_{lcx}_{fid}.root'
`

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	return rows
}

func TestSweep_WritesOneRowPerUnit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	prev := color.SetEnabled(false)
	defer color.SetEnabled(prev)

	dir := t.TempDir()
	table := filepath.Join(dir, "table.yaml")
	require.NoError(t, os.WriteFile(table, []byte(testTable), 0o600))

	csvPath := filepath.Join(dir, "out", "scan.csv")

	var out bytes.Buffer

	c := Command()
	c.Writer = &out
	c.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := c.Run(context.Background(), []string{"sweep", "-f", table, "-l", filepath.Join(dir, "logs"), "-o", csvPath})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[Run 1010_lcx1_fid3] SUCCESS.")
	assert.Contains(t, out.String(), "[Run 1010_lcx-1_fid3] SUCCESS.")
	assert.FileExists(t, filepath.Join(dir, "logs", "burn_1010_lcx1_fid3.log"))

	rows := readCSV(t, csvPath)
	require.Len(t, rows, 3)
	assert.Equal(t, aggregate.Columns, rows[0])

	body := rows[1:]
	sort.Slice(body, func(i, j int) bool { return body[i][0] < body[j][0] })

	assert.Equal(t, []string{
		"Run_1", "1010", "PID", "7", "40", "200", "NA", "NA", "NA", "NA", "NA", "NA",
		"1", "3", "20.0", "NA", "NA", "NA", "res_1_3.root",
	}, body[0])
	assert.Equal(t, []string{
		"Run_2", "1010", "All", "7", "40", "200", "NA", "NA", "NA", "NA", "NA", "NA",
		"-1", "3", "20.0", "NA", "NA", "NA", "res_-1_3.root",
	}, body[1])
}

func TestCollect(t *testing.T) {
	stubs := gostub.Stub(&aggregate.FS, afero.NewMemMapFs())
	defer stubs.Reset()

	ctx := context.Background()

	sink, err := aggregate.NewSink(ctx, "results.csv")
	require.NoError(t, err)

	collect := Collect(sink)
	unit := workunit.WorkUnit{
		ID:     "1010_lcx-1_fid-1",
		Run:    "1010",
		Index:  5,
		Params: workunit.Params{{Name: "lcx", Value: "-1"}, {Name: "fid", Value: "-1"}},
	}

	require.NoError(t, collect(ctx, runbatch.Report{
		Unit:    unit,
		Status:  runbatch.StatusFailure,
		Outcome: runbatch.Outcome{Output: []byte("Run Number: 1010\n")},
	}))
	require.NoError(t, collect(ctx, runbatch.Report{
		Unit:   unit,
		Status: runbatch.StatusException,
		Err:    errors.New("boom"),
	}))
	require.NoError(t, sink.Close())

	assert.Equal(t, 1, sink.Rows())
}

func TestCollect_FilteredOutputOnlyAtDebug(t *testing.T) {
	tests := []struct {
		name   string
		level  slog.Level
		logged bool
	}{
		{name: "debug", level: slog.LevelDebug, logged: true},
		{name: "info", level: slog.LevelInfo, logged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubs := gostub.Stub(&aggregate.FS, afero.NewMemMapFs())
			defer stubs.Reset()

			var logs bytes.Buffer

			ctx := ctxlog.New(context.Background(), slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: tt.level})))

			sink, err := aggregate.NewSink(ctx, "results.csv")
			require.NoError(t, err)

			require.NoError(t, Collect(sink)(ctx, runbatch.Report{
				Unit:    workunit.WorkUnit{ID: "1010", Run: "1010", Index: 1},
				Status:  runbatch.StatusSuccess,
				Outcome: runbatch.Outcome{Output: []byte("Run Number: 1010\n 50 % done\rTotal entries: 10\n")},
			}))
			require.NoError(t, sink.Close())
			assert.Equal(t, 1, sink.Rows())

			if tt.logged {
				assert.Contains(t, logs.String(), "filtered output")
				assert.NotContains(t, logs.String(), "% done")
			} else {
				assert.NotContains(t, logs.String(), "filtered output")
			}
		})
	}
}

func TestRecord_Selectors(t *testing.T) {
	rec := Record(runbatch.Report{
		Unit: workunit.WorkUnit{
			Index:  3,
			Params: workunit.Params{{Name: "lcx", Value: "2"}, {Name: "fid", Value: "-1"}},
		},
		Outcome: runbatch.Outcome{Output: []byte("Loaded PID cut for FocalPlane 8\n")},
	})

	assert.Equal(t, "Run_3", rec.Run)
	assert.Equal(t, "PID", rec.CutType.String())
	assert.Equal(t, aggregate.All, rec.FocalPlane.String())
	assert.Equal(t, "2", rec.Lcx.String())
	assert.Equal(t, "-1", rec.Fid.String())
	assert.Equal(t, aggregate.NA, rec.RunNbr.String())
}

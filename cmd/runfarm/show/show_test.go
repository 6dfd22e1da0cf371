// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package show

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func showCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	c := Command()
	c.Writer = &out
	c.ErrWriter = &out
	c.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := c.Run(context.Background(), append([]string{"show"}, args...))

	return out.String(), err
}

func TestShow_Table(t *testing.T) {
	out, err := showCmd(t)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Pipelines:\n"))
	assert.Contains(t, out, "  analyze-53ca-au (default)  2 stages, jobs 8  52,53,54Ca setting on the Au target\n")
	assert.Contains(t, out, "  histos-53ca-be  10 stages, jobs 16")
	assert.Contains(t, out, "Sweeps:\n")
	assert.Contains(t, out, "  burning-1010 (default)  1 stages, jobs 30, output burning_giraffe_results.csv")
}

func TestShow_PipelineUnits(t *testing.T) {
	out, err := showCmd(t, "-p", "analyze-53ca-au", "101", "102")
	require.NoError(t, err)

	assert.Contains(t, out, "pipeline analyze-53ca-au: 2 units\n")
	assert.Contains(t, out, "[Run 101]\n")
	assert.Contains(t, out, "  1. metamorphosis: Metamorphosis -i ~/ridf/Gamma25_101.ridf -o ~/rootfiles/kw/meta_101.root -s set_53Ca_Au.dat\n")
	assert.Contains(t, out, "  2. disintegration: Disintegration -i ~/rootfiles/kw/meta_102.root")
}

func TestShow_SplitStages(t *testing.T) {
	out, err := showCmd(t, "-p", "analyze-53ca-au", "--split-stages", "-r", "101")
	require.NoError(t, err)

	assert.Contains(t, out, "pipeline analyze-53ca-au: 2 units\n")
	assert.Contains(t, out, "[Run 101_metamorphosis]\n")
	assert.Contains(t, out, "[Run 101_disintegration]\n")
}

func TestShow_SweepUnits(t *testing.T) {
	out, err := showCmd(t, "-s", "burning-1010")
	require.NoError(t, err)

	assert.Contains(t, out, "sweep burning-1010, output burning_giraffe_results.csv: 24 units\n")
	assert.Contains(t, out, "[Run 1010_lcx1_fid3]\n")
	assert.Contains(t, out, "[Run 1010_lcx-1_fid37]\n")
}

func TestShow_SchemaJSON(t *testing.T) {
	out, err := showCmd(t, "--schema", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, schemaTitle, doc["title"])
}

func TestShow_SchemaMarkdown(t *testing.T) {
	out, err := showCmd(t, "--schema", "markdown")
	require.NoError(t, err)

	assert.Contains(t, out, "# "+schemaTitle+"\n")
	assert.Contains(t, out, "## Root / sweeps\n")
}

func TestShow_SchemaUnknownFormat(t *testing.T) {
	_, err := showCmd(t, "--schema", "xml")

	var ec cli.ExitCoder
	require.ErrorAs(t, err, &ec)
	assert.Contains(t, err.Error(), ErrUnknownSchemaFormat.Error())
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runlist reads the list of run identifiers a batch processes.
//
// A run file holds one or more run identifiers per line. Blank lines, lines
// starting with '#' and anything after a '#' on a line are ignored.
package runlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

const commentChar = "#"

var (
	// ErrReadRunFile is returned when the run file cannot be read.
	ErrReadRunFile = errors.New("failed to read run file")
	// ErrNoRuns is returned when no run identifiers were found.
	ErrNoRuns = errors.New("no runs given")
)

// FS is the filesystem run files are read from.
var FS = afero.NewOsFs()

// Parse returns the run identifiers in r, in file order.
func Parse(r io.Reader) ([]string, error) {
	var runs []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		runs = append(runs, parseLine(sc.Text())...)
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Join(ErrReadRunFile, err)
	}

	return runs, nil
}

// Load parses the run file at path.
func Load(path string) ([]string, error) {
	f, err := FS.Open(path)
	if err != nil {
		return nil, errors.Join(ErrReadRunFile, err)
	}

	defer f.Close() //nolint:errcheck

	runs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return runs, nil
}

// Resolve combines runs given directly with the runs of an optional run file.
// It fails with ErrNoRuns when the result is empty.
func Resolve(direct []string, runFile string) ([]string, error) {
	runs := make([]string, 0, len(direct))
	for _, d := range direct {
		runs = append(runs, parseLine(d)...)
	}

	if runFile != "" {
		fromFile, err := Load(runFile)
		if err != nil {
			return nil, err
		}

		runs = append(runs, fromFile...)
	}

	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	return runs, nil
}

func parseLine(line string) []string {
	line, _, _ = strings.Cut(line, commentChar)

	return strings.Fields(line)
}

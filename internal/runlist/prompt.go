// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runlist

import (
	"context"
	"errors"
	"io"

	"github.com/peterh/liner"
)

const promptText = "run(s)> "

// Prompt reads run identifiers from the terminal until an empty line or EOF.
// Each line follows the run file syntax. Ctrl-C aborts with liner.ErrPromptAborted.
func Prompt(ctx context.Context) ([]string, error) {
	line := liner.NewLiner()
	defer line.Close() //nolint:errcheck

	line.SetCtrlCAborts(true)

	var runs []string

	for ctx.Err() == nil {
		text, err := line.Prompt(promptText)

		switch {
		case errors.Is(err, io.EOF):
			return finish(runs)
		case err != nil:
			return nil, err
		}

		parsed := parseLine(text)
		if len(parsed) == 0 && len(runs) > 0 {
			break
		}

		if len(parsed) > 0 {
			line.AppendHistory(text)
			runs = append(runs, parsed...)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return finish(runs)
}

func finish(runs []string) ([]string, error) {
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	return runs, nil
}

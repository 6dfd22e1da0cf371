// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/runfarm/internal/color"
)

// Status is the final classification of a unit.
type Status int

const (
	// StatusSuccess means every stage exited with code 0.
	StatusSuccess Status = iota
	// StatusFailure means a stage failed or could not be started.
	StatusFailure
	// StatusException means the unit could not be processed.
	StatusException
)

// String implements the Stringer interface for Status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusException:
		return "EXCEPTION"
	default:
		return "UNKNOWN"
	}
}

func (s Status) colour() color.Code {
	switch s {
	case StatusSuccess:
		return color.FgGreen
	case StatusFailure:
		return color.FgRed
	default:
		return color.FgYellow
	}
}

// FormatStatus returns the one line summary of a report, without a trailing newline.
func FormatStatus(r Report) string {
	status := color.Colorize(r.Status.String(), color.Bold, r.Status.colour())

	if r.Status == StatusException {
		return fmt.Sprintf("[Run %s] %s: %s", r.Unit.ID, status, errString(r.Err))
	}

	return fmt.Sprintf("[Run %s] %s. Log: %s", r.Unit.ID, status, r.Outcome.LogPath)
}

// WriteStatus writes the status line of the report in a single write.
func WriteStatus(w io.Writer, r Report) error {
	_, err := io.WriteString(w, FormatStatus(r)+"\n")
	return err //nolint:wrapcheck
}

// Summary counts reports by status.
type Summary struct {
	Success   int
	Failure   int
	Exception int
}

// Add counts one report.
func (s *Summary) Add(r Report) {
	switch r.Status {
	case StatusSuccess:
		s.Success++
	case StatusFailure:
		s.Failure++
	default:
		s.Exception++
	}
}

// Total returns the number of counted reports.
func (s Summary) Total() int {
	return s.Success + s.Failure + s.Exception
}

// AllSucceeded reports whether every counted unit succeeded.
func (s Summary) AllSucceeded() bool {
	return s.Failure == 0 && s.Exception == 0
}

// String implements the Stringer interface for Summary.
func (s Summary) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%d units: ", s.Total())
	sb.WriteString(color.Colorize(fmt.Sprintf("%d succeeded", s.Success), color.FgGreen))
	sb.WriteString(", ")

	if s.Failure > 0 {
		sb.WriteString(color.Colorize(fmt.Sprintf("%d failed", s.Failure), color.FgRed))
	} else {
		fmt.Fprintf(&sb, "%d failed", s.Failure)
	}

	sb.WriteString(", ")

	if s.Exception > 0 {
		sb.WriteString(color.Colorize(fmt.Sprintf("%d exceptions", s.Exception), color.FgYellow))
	} else {
		fmt.Fprintf(&sb, "%d exceptions", s.Exception)
	}

	return sb.String()
}

// errString renders joined errors on one line.
func errString(err error) string {
	if err == nil {
		return "<nil>"
	}

	return strings.ReplaceAll(err.Error(), "\n", ": ")
}

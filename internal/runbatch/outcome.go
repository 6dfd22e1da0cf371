// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"time"
)

// State is the position of a unit in its pipeline state machine.
type State int

const (
	// StatePending is a unit that has not started.
	StatePending State = iota
	// StateRunning is a unit with a stage in flight.
	StateRunning
	// StateDone is a unit whose stages all succeeded.
	StateDone
	// StateFailed is a unit stopped by a failing stage.
	StateFailed
)

// String implements the Stringer interface for State.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a pipeline. It is not modified after Run returns.
type Outcome struct {
	UnitID          string
	State           State
	CurrentStage    int           // last stage started
	FailedStage     int           // -1 when no stage failed
	FailedStageName string        // label of the failed stage
	ExitCode        int           // exit code of the failed stage
	Err             error         // launch or kill error of the failed stage
	LogPath         string        // unit log file
	Output          []byte        // captured output of every stage, when the executor captures
	Duration        time.Duration // wall time of the whole pipeline
}

// Succeeded reports whether every stage completed.
func (o Outcome) Succeeded() bool {
	return o.State == StateDone
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runbatch runs batches of work units.
//
// An Executor runs one stage as an external process. A Pipeline runs the stages of a unit in order,
// records them in the unit log and stops at the first failure. A Pool runs many units at once with
// a fixed number of workers and delivers one Report per unit as each finishes.
//
// A failing unit never affects the others. Panics and log file problems become the EXCEPTION status
// of the unit they happened in.
package runbatch

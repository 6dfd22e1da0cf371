// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package aggregate

import (
	"fmt"
)

// PID groups of the count columns.
const (
	PID2 = 0
	PID5 = 1
)

// Columns is the CSV header, in row order.
var Columns = []string{
	"Run", "RunNbr", "cutType", "FocalPlane",
	"CutApplied_50Ca20_pid2", "Total_50Ca20_pid2", "CutApplied_49K19_pid2", "Total_49K19_pid2",
	"CutApplied_50Ca20_pid5", "Total_50Ca20_pid5", "CutApplied_49K19_pid5", "Total_49K19_pid5",
	"lcx", "fid",
	"percent_50Ca_pid2", "percent_49K_pid2", "percent_50Ca_pid5", "percent_49K_pid5",
	"OutputFile",
}

// Record is one row of the sweep table. Count arrays are indexed by PID2 and PID5.
type Record struct {
	Run         string // row label, e.g. Run_7
	RunNbr      Value
	CutType     Value
	FocalPlane  Value
	Applied50Ca [2]Value
	Total50Ca   [2]Value
	Applied49K  [2]Value
	Total49K    [2]Value
	Lcx         Value
	Fid         Value
	OutputFile  Value
}

// Percent50Ca returns the applied over total percentage of 50Ca20 in the PID group.
func (r Record) Percent50Ca(pid int) Value {
	return Percent(r.Applied50Ca[pid], r.Total50Ca[pid])
}

// Percent49K returns the applied over total percentage of 49K19 in the PID group.
func (r Record) Percent49K(pid int) Value {
	return Percent(r.Applied49K[pid], r.Total49K[pid])
}

// Row returns the record as CSV fields in Columns order.
func (r Record) Row() []string {
	return []string{
		r.Run,
		r.RunNbr.String(),
		r.CutType.String(),
		r.FocalPlane.String(),
		r.Applied50Ca[PID2].String(),
		r.Total50Ca[PID2].String(),
		r.Applied49K[PID2].String(),
		r.Total49K[PID2].String(),
		r.Applied50Ca[PID5].String(),
		r.Total50Ca[PID5].String(),
		r.Applied49K[PID5].String(),
		r.Total49K[PID5].String(),
		r.Lcx.String(),
		r.Fid.String(),
		r.Percent50Ca(PID2).String(),
		r.Percent49K(PID2).String(),
		r.Percent50Ca(PID5).String(),
		r.Percent49K(PID5).String(),
		r.OutputFile.String(),
	}
}

// Field returns the value of the named column.
func (r Record) Field(column string) (string, error) {
	for i, c := range Columns {
		if c == column {
			return r.Row()[i], nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownColumn, column)
}

// Label returns the row label of the unit with the given one based index.
func Label(index int) string {
	return fmt.Sprintf("Run_%d", index)
}

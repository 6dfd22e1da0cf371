// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package aggregate

import (
	"strconv"
	"strings"
)

// NA is written for every field that is not available.
const NA = "NA"

// Value is a field that is either available or NA.
type Value struct {
	s  string
	ok bool
}

// Missing is the NA value.
var Missing = Value{}

// Of returns an available value.
func Of(s string) Value {
	return Value{s: s, ok: true}
}

// Valid reports whether the value is available.
func (v Value) Valid() bool {
	return v.ok
}

// String returns the value, or NA.
func (v Value) String() string {
	if !v.ok {
		return NA
	}

	return v.s
}

// Int returns the value as an integer. ok is false for NA or non numeric values.
func (v Value) Int() (int64, bool) {
	if !v.ok {
		return 0, false
	}

	n, err := strconv.ParseInt(v.s, 10, 64)

	return n, err == nil
}

// Percent returns applied / total * 100.
// It is NA unless both counts are available and total is not zero.
func Percent(applied, total Value) Value {
	a, ok := applied.Int()
	if !ok {
		return Missing
	}

	t, ok := total.Int()
	if !ok || t == 0 {
		return Missing
	}

	return Of(formatFloat(float64(a) / float64(t) * 100))
}

// formatFloat prints the shortest representation that round-trips, always with a decimal point.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

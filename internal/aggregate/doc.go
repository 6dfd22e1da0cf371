// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package aggregate turns the output of a sweep unit into one CSV row.
//
// Extract applies a fixed set of patterns to the captured output. Any field whose pattern
// does not match holds the NA marker, never a zero. A Sink owns the CSV file and is the only
// goroutine that writes to it.
package aggregate

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package workunit builds the units of work a batch executes.
//
// A WorkUnit is one run (optionally combined with a tuple of parameter values)
// and the ordered stages that process it. Stage commands are rendered from
// templates once, when the unit is built, and are never changed afterwards.
// Commands are structured as a program and an explicit argument list; no shell
// is involved, so a value containing spaces stays a single argument.
package workunit

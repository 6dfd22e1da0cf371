// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a live terminal view of a batch.
// Each work unit is one row showing its status, current stage, elapsed time and last output line.
// The view is fed by progress events and stays open after the batch finishes until the user quits.
package tui

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries live updates about work units while a batch runs.
// The pipeline runner and the worker pool emit events, the TUI consumes them.
package progress

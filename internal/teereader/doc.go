// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package teereader provides a writer that forwards everything to a destination
// while remembering the last complete line. Stage output is streamed through it
// into the unit log so the latest line can be shown as live progress.
package teereader

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a slog logger in a context.Context.
//
// The default logger writes to stdout using PrettyHandler, which prints the
// time, level and message followed by the attributes as indented JSON.
// The level is read from the RUNFARM_LOG_LEVEL environment variable and may be
// DEBUG, INFO, WARN or ERROR. Anything else means WARN.
package ctxlog

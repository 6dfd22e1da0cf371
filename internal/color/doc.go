// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color wraps console strings in ANSI colour codes.
// Colour is on when stdout is a terminal, can be forced with FORCE_COLOR and
// is always off when NO_COLOR is set.
package color

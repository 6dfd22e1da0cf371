// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package workunit

import (
	"strconv"
	"strings"
)

// CommandSpec is an external command: the program and its arguments, excluding the program name itself.
type CommandSpec struct {
	Program string
	Args    []string
}

// String renders the command the way a user would type it.
// Arguments that would not survive a shell unchanged are quoted.
func (c CommandSpec) String() string {
	sb := strings.Builder{}
	sb.WriteString(quoteArg(c.Program))

	for _, a := range c.Args {
		sb.WriteString(" ")
		sb.WriteString(quoteArg(a))
	}

	return sb.String()
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"'\\$`;&|<>*?()") {
		return strconv.Quote(s)
	}

	return s
}

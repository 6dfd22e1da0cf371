// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"io"
	"strings"
	"sync"
)

const ellipsis = "..."

// LastLineTeeWriter writes to an underlying writer and tracks the last complete line.
// Both '\n' and '\r' end a line, so carriage-return progress counters are seen as they update.
// It is safe for concurrent use.
type LastLineTeeWriter struct {
	dst            io.Writer
	onLine         func(string)
	lastLine       string
	partialBuilder strings.Builder
	mu             sync.RWMutex
}

// NewLastLineTeeWriter creates a writer forwarding to dst.
// onLine, when not nil, is called with every complete non-empty line.
func NewLastLineTeeWriter(dst io.Writer, onLine func(string)) *LastLineTeeWriter {
	if dst == nil {
		dst = io.Discard
	}

	return &LastLineTeeWriter{
		dst:    dst,
		onLine: onLine,
	}
}

// Write implements io.Writer. Lines are tracked only for the bytes the destination accepted.
func (lt *LastLineTeeWriter) Write(p []byte) (int, error) {
	n, err := lt.dst.Write(p)
	if n > 0 {
		lines := lt.processNewData(string(p[:n]))
		if lt.onLine != nil {
			for _, l := range lines {
				lt.onLine(l)
			}
		}
	}

	return n, err //nolint:wrapcheck
}

// processNewData returns the non-empty lines completed by data.
func (lt *LastLineTeeWriter) processNewData(data string) []string {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var complete []string

	for {
		i := strings.IndexAny(data, "\r\n")
		if i < 0 {
			lt.partialBuilder.WriteString(data)
			return complete
		}

		lt.partialBuilder.WriteString(data[:i])
		line := strings.TrimSpace(lt.partialBuilder.String())
		lt.partialBuilder.Reset()

		if line != "" {
			lt.lastLine = line
			complete = append(complete, line)
		}

		data = data[i+1:]
	}
}

// GetLastLine returns the last complete non-empty line.
// When maxLength > 0 longer lines are cut and end with "...".
func (lt *LastLineTeeWriter) GetLastLine(maxLength int) string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	result := lt.lastLine
	if maxLength > len(ellipsis) && len(result) > maxLength {
		result = result[:maxLength-len(ellipsis)] + ellipsis
	}

	return result
}

// GetPartialLine returns the text written since the last line ending.
func (lt *LastLineTeeWriter) GetPartialLine() string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.partialBuilder.String()
}

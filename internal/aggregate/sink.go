// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package aggregate

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/spf13/afero"
)

const (
	sinkBuffer = 64
	dirPerm    = 0o755
	filePerm   = 0o644
)

var (
	// ErrSinkClosed is returned when a record is appended after Close.
	ErrSinkClosed = errors.New("sink is closed")
	// ErrCreateOutput is returned when the CSV file cannot be created.
	ErrCreateOutput = errors.New("cannot create output file")
	// ErrWriteOutput is returned when a row cannot be written.
	ErrWriteOutput = errors.New("cannot write output file")
	// ErrUnknownColumn is returned for a column name that is not in Columns.
	ErrUnknownColumn = errors.New("unknown column")
)

// FS is the filesystem the CSV file is written to.
var FS = afero.NewOsFs()

// Sink writes records to a CSV file from a single owner goroutine.
// Append may be called from any number of goroutines.
type Sink struct {
	path    string
	records chan Record
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	rows    int
	err     error
}

// NewSink creates the file at path, replacing any previous one, and writes the header.
func NewSink(ctx context.Context, path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := FS.MkdirAll(dir, dirPerm); err != nil {
			return nil, errors.Join(ErrCreateOutput, err)
		}
	}

	f, err := FS.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, errors.Join(ErrCreateOutput, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		_ = f.Close()
		return nil, errors.Join(ErrWriteOutput, err)
	}

	s := &Sink{
		path:    path,
		records: make(chan Record, sinkBuffer),
		done:    make(chan struct{}),
	}

	go s.own(ctx, f, w)

	return s, nil
}

// own is the only code that touches the file.
func (s *Sink) own(ctx context.Context, f afero.File, w *csv.Writer) {
	defer close(s.done)

	var errs []error

	for rec := range s.records {
		if err := w.Write(rec.Row()); err != nil {
			ctxlog.Error(ctx, "failed to write row", "run", rec.Run, "error", err)
			errs = append(errs, err)

			continue
		}

		s.rows++
	}

	w.Flush()

	if err := w.Error(); err != nil {
		errs = append(errs, err)
	}

	if err := f.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		s.err = errors.Join(append([]error{ErrWriteOutput}, errs...)...)
	}

	ctxlog.Debug(ctx, "output file closed", "path", s.path, "rows", s.rows)
}

// Append hands a record to the owner goroutine, blocking while the buffer is full.
// A record is never dropped once the sink accepted it, including after ctx is cancelled:
// the owner drains the buffer until Close.
func (s *Sink) Append(ctx context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSinkClosed
	}

	if ctx.Err() != nil {
		ctxlog.Debug(ctx, "appending row after cancellation", "run", rec.Run)
	}

	s.records <- rec

	return nil
}

// Close waits for every appended record to be written, then flushes and closes the file.
// It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.records)
	}
	s.mu.Unlock()

	<-s.done

	return s.err
}

// Rows waits for the sink to be closed and returns the number of rows written.
func (s *Sink) Rows() int {
	<-s.done
	return s.rows
}

// Path returns the CSV file path.
func (s *Sink) Path() string {
	return s.path
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is a single update about a work unit.
type Event struct {
	UnitID    string    // Work unit the event belongs to
	Type      EventType // What happened
	Message   string    // Human-readable status message
	Timestamp time.Time // When the event occurred
	Data      EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventStarted indicates a worker picked up the unit.
	EventStarted EventType = iota
	// EventStageStarted indicates a stage process is about to be launched.
	EventStageStarted
	// EventOutput indicates a new line of stage output is available.
	EventOutput
	// EventCompleted indicates every stage succeeded.
	EventCompleted
	// EventFailed indicates a stage failed or could not be started.
	EventFailed
	// EventException indicates the unit could not be processed at all.
	EventException
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventStarted:
		return "started"
	case EventStageStarted:
		return "stage"
	case EventOutput:
		return "output"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventException:
		return "exception"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events follow for the unit.
func (et EventType) Terminal() bool {
	return et == EventCompleted || et == EventFailed || et == EventException
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// For EventStageStarted and EventOutput
	Stage        string
	StageOrdinal int

	// For EventOutput
	OutputLine string

	// For EventCompleted, EventFailed and EventException
	ExitCode int
	Error    error
	LogPath  string
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends an event. Implementations must not block the caller.
	Report(event Event)
	// Close signals that no more events will be sent.
	Close()
}

// Listener receives progress events.
type Listener interface {
	OnEvent(event Event)
}

// NullReporter discards every event.
type NullReporter struct{}

// Report does nothing.
func (nr *NullReporter) Report(Event) {}

// Close does nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}

// OrNull returns r, or a NullReporter when r is nil.
func OrNull(r Reporter) Reporter {
	if r == nil {
		return NewNullReporter()
	}

	return r
}

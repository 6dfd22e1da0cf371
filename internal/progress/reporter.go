// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
)

// ChannelReporter implements Reporter using a buffered channel.
// Events are dropped rather than blocking the sender when the buffer is full.
type ChannelReporter struct {
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer size.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	reporterCtx, cancel := context.WithCancel(ctx)

	return &ChannelReporter{
		ch:     make(chan Event, bufferSize),
		ctx:    reporterCtx,
		cancel: cancel,
	}
}

// Report implements Reporter. Terminal events wait for buffer space
// until the reporter context ends, every other event is dropped when the buffer is full.
func (cr *ChannelReporter) Report(event Event) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed {
		return
	}

	if event.Type.Terminal() {
		select {
		case cr.ch <- event:
		case <-cr.ctx.Done():
		}

		return
	}

	select {
	case cr.ch <- event:
	case <-cr.ctx.Done():
	default:
	}
}

// Close implements Reporter. It is safe to call more than once.
func (cr *ChannelReporter) Close() {
	cr.cancel()

	cr.mu.Lock()
	if !cr.closed {
		cr.closed = true
		close(cr.ch)
	}
	cr.mu.Unlock()

	cr.wg.Wait()
}

// Listen forwards events to the listener from a new goroutine
// until the reporter is closed.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for event := range cr.ch {
			listener.OnEvent(event)
		}
	}()
}

// Events returns a read-only channel of progress events.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

// Context returns the reporter's context. It is cancelled by Close.
func (cr *ChannelReporter) Context() context.Context {
	return cr.ctx
}

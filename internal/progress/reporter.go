// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
)

// ChannelReporter implements Reporter over a buffered Go channel. Sends
// never block: when the buffer is full or the reporter is closed the event
// is dropped.
type ChannelReporter struct {
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer
// size. A larger buffer size reduces the chance of dropped events.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	reporterCtx, cancel := context.WithCancel(ctx)

	return &ChannelReporter{
		ch:     make(chan Event, bufferSize),
		ctx:    reporterCtx,
		cancel: cancel,
	}
}

// Report implements Reporter.Report. It sends the event to the channel in a
// non-blocking manner. If the channel is full or closed, the event is
// dropped.
func (cr *ChannelReporter) Report(event Event) {
	select {
	case <-cr.ctx.Done():
		// Reporter is closed, drop the event
		return
	default:
	}

	select {
	case cr.ch <- event:
		// Event sent successfully
	case <-cr.ctx.Done():
		// Reporter is closed, drop the event
	default:
		// Channel is full, drop the event to avoid blocking
	}
}

// Close implements Reporter.Close. It closes the channel and cancels the
// context.
func (cr *ChannelReporter) Close() {
	cr.once.Do(func() {
		cr.cancel()
		close(cr.ch)
	})
}

// Events returns a read-only channel of progress events for consumers that
// drain events themselves.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

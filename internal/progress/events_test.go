// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		expected  string
	}{
		{
			name:      "EventEngineStarted",
			eventType: EventEngineStarted,
			expected:  "engine started",
		},
		{
			name:      "EventStepStarted",
			eventType: EventStepStarted,
			expected:  "step started",
		},
		{
			name:      "EventStepsDone",
			eventType: EventStepsDone,
			expected:  "steps done",
		},
		{
			name:      "EventStepFailed",
			eventType: EventStepFailed,
			expected:  "step failed",
		},
		{
			name:      "EventOutput",
			eventType: EventOutput,
			expected:  "output",
		},
		{
			name:      "EventHeartbeat",
			eventType: EventHeartbeat,
			expected:  "heartbeat",
		},
		{
			name:      "EventCompleted",
			eventType: EventCompleted,
			expected:  "completed",
		},
		{
			name:      "EventInterrupted",
			eventType: EventInterrupted,
			expected:  "interrupted",
		},
		{
			name:      "EventFailed",
			eventType: EventFailed,
			expected:  "failed",
		},
		{
			name:      "Unknown event type",
			eventType: EventType(999),
			expected:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
		})
	}
}

func TestNullReporter(t *testing.T) {
	reporter := NewNullReporter()
	require.NotNil(t, reporter)

	// These should not panic
	reporter.Report(Event{
		Type:      EventEngineStarted,
		Message:   "test message",
		Timestamp: time.Now(),
	})

	reporter.Close()
}

func TestChannelReporter(t *testing.T) {
	ctx := context.Background()
	reporter := NewChannelReporter(ctx, 10)
	require.NotNil(t, reporter)

	// Test reporting events
	event := Event{
		Type:      EventEngineStarted,
		Message:   "engine spawned",
		Timestamp: time.Now(),
	}

	reporter.Report(event)

	// Test receiving events
	select {
	case receivedEvent := <-reporter.Events():
		assert.Equal(t, event.Type, receivedEvent.Type)
		assert.Equal(t, event.Message, receivedEvent.Message)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Event not received within timeout")
	}

	reporter.Close()

	// Test that closed reporter drops events
	reporter.Report(Event{
		Type:    EventCompleted,
		Message: "Should be dropped",
	})
}

func TestChannelReporter_BufferOverflow(t *testing.T) {
	ctx := context.Background()
	// Create reporter with small buffer
	reporter := NewChannelReporter(ctx, 1)
	require.NotNil(t, reporter)

	// Fill the buffer
	reporter.Report(Event{Type: EventEngineStarted, Message: "Event 1"})

	// This should not block due to the non-blocking send
	reporter.Report(Event{Type: EventStepsDone, Message: "Event 2"})

	reporter.Close()
}

func TestChannelReporter_Drain(t *testing.T) {
	ctx := context.Background()
	reporter := NewChannelReporter(ctx, 10)
	require.NotNil(t, reporter)

	events := []Event{
		{Type: EventEngineStarted, Message: "spawned"},
		{Type: EventStepsDone, Message: "1 of 2 steps done"},
		{Type: EventCompleted, Message: "done"},
	}

	for _, event := range events {
		reporter.Report(event)
	}

	reporter.Close()

	// A closed reporter still delivers everything that was buffered.
	var received []Event
	for event := range reporter.Events() {
		received = append(received, event)
	}

	require.Len(t, received, len(events))

	for i, expectedEvent := range events {
		assert.Equal(t, expectedEvent.Type, received[i].Type)
		assert.Equal(t, expectedEvent.Message, received[i].Message)
	}
}

func TestChannelReporter_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reporter := NewChannelReporter(ctx, 1)
	require.NotNil(t, reporter)

	reporter.Close()
	reporter.Close()
}

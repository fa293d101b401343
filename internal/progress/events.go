// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is a real-time update from a supervised pipeline run. Events are
// emitted throughout the run lifecycle to drive the TUI and other monitors.
type Event struct {
	Type      EventType // Event type indicating what happened
	Message   string    // Human-readable status message
	Timestamp time.Time // When the event occurred
	Data      EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventEngineStarted indicates the engine process has been spawned.
	EventEngineStarted EventType = iota
	// EventStepStarted indicates a workflow step has begun.
	EventStepStarted
	// EventStepsDone indicates a steps-completed progress update.
	EventStepsDone
	// EventStepFailed indicates the engine reported a failing step.
	EventStepFailed
	// EventOutput indicates new engine output is available.
	EventOutput
	// EventHeartbeat indicates elapsed runtime with no other news.
	EventHeartbeat
	// EventCompleted indicates the engine exited successfully.
	EventCompleted
	// EventInterrupted indicates the run was interrupted by a signal.
	EventInterrupted
	// EventFailed indicates the engine exited unsuccessfully or could not run.
	EventFailed
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventEngineStarted:
		return "engine started"
	case EventStepStarted:
		return "step started"
	case EventStepsDone:
		return "steps done"
	case EventStepFailed:
		return "step failed"
	case EventOutput:
		return "output"
	case EventHeartbeat:
		return "heartbeat"
	case EventCompleted:
		return "completed"
	case EventInterrupted:
		return "interrupted"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// For EventOutput
	OutputLine string // The actual output line
	IsStderr   bool   // True if this is stderr output

	// For EventStepStarted and EventStepFailed
	Step string // The workflow step (rule) name

	// For EventStepsDone
	Done    int     // Steps completed so far
	Total   int     // Total steps in the workflow
	Percent float64 // Completion percentage as reported by the engine

	// For EventHeartbeat
	Elapsed time.Duration // Time since the engine was spawned

	// For EventCompleted/EventInterrupted/EventFailed
	ExitCode int   // Engine exit code
	Error    error // Error if the run failed
}

// Reporter is the interface for sending progress events. Implementations
// must be non-blocking and tolerate nobody listening.
type Reporter interface {
	// Report sends a progress event.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// NullReporter is a no-op implementation of Reporter, used when progress
// reporting is not needed.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(event Event) {
	// No-op
}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {
	// No-op
}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}

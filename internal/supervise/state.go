// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

// State describes where a supervised run is in its lifecycle. A run starts
// in StateNotStarted, moves to StateRunning when the engine process has been
// spawned, and ends in exactly one of the terminal states.
type State int32

const (
	// StateNotStarted means the engine process has not been spawned yet.
	StateNotStarted State = iota
	// StateRunning means the engine process is alive.
	StateRunning
	// StateCompleted means the engine exited with a success code.
	StateCompleted
	// StateInterrupted means the run was stopped by a signal or cancellation
	// and the engine did not exit successfully.
	StateInterrupted
	// StateFailed means the engine exited unsuccessfully or could not run.
	StateFailed
)

// String implements the Stringer interface for State.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is one of the end states.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateInterrupted, StateFailed:
		return true
	default:
		return false
	}
}

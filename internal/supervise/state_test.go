// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected string
	}{
		{
			name:     "StateNotStarted",
			state:    StateNotStarted,
			expected: "not started",
		},
		{
			name:     "StateRunning",
			state:    StateRunning,
			expected: "running",
		},
		{
			name:     "StateCompleted",
			state:    StateCompleted,
			expected: "completed",
		},
		{
			name:     "StateInterrupted",
			state:    StateInterrupted,
			expected: "interrupted",
		},
		{
			name:     "StateFailed",
			state:    StateFailed,
			expected: "failed",
		},
		{
			name:     "unknown state",
			state:    State(999),
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateNotStarted.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateInterrupted.Terminal())
	assert.True(t, StateFailed.Terminal())
}

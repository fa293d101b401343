// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/engine"
	"github.com/matt-FFFFFF/stoker/internal/progress"
	"github.com/prashantv/gostub"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain is used to run the goleak verification before and after tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingReporter collects every reported event for later inspection.
type recordingReporter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingReporter) Report(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recordingReporter) Close() {}

func (r *recordingReporter) byType(t progress.EventType) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []progress.Event

	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}

	return out
}

// stubProcTree replaces descendant enumeration and termination with fakes
// and returns the recorded terminated pids.
func stubProcTree(t *testing.T, descendants []*process.Process) *terminatedPids {
	t.Helper()

	pids := &terminatedPids{}

	stubs := gostub.Stub(&ListDescendants, func(_ context.Context, _ int32) ([]*process.Process, error) {
		return descendants, nil
	})
	stubs.Stub(&TerminateDescendant, func(_ context.Context, p *process.Process) error {
		pids.add(p.Pid)
		return nil
	})
	t.Cleanup(stubs.Reset)

	return pids
}

type terminatedPids struct {
	mu   sync.Mutex
	pids []int32
}

func (tp *terminatedPids) add(pid int32) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	tp.pids = append(tp.pids, pid)
}

func (tp *terminatedPids) all() []int32 {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	return tp.pids
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx := ctxlog.New(t.Context(), ctxlog.DefaultLogger)
	ctxlog.LevelVar.Set(slog.LevelDebug)

	return ctx
}

func TestSupervisorRun_Success(t *testing.T) {
	var stdout, stderr bytes.Buffer

	reporter := &recordingReporter{}
	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sh",
			Args: []string{"-c", `echo hello; echo '1 of 2 steps (50%) done' >&2`},
			Env:  map[string]string{"FOO": "BAR"},
		},
		Stdout:   &stdout,
		Stderr:   &stderr,
		Reporter: reporter,
		Signals:  make(chan os.Signal, 1),
	}

	assert.Equal(t, StateNotStarted, s.State(), "expected initial state to be not started")

	outcome := s.Run(testContext(t))

	assert.Equal(t, StateCompleted, outcome.State, "expected completed state")
	assert.Equal(t, 0, outcome.ExitCode, "expected exit code 0")
	require.NoError(t, outcome.Err, "unexpected error")
	assert.True(t, outcome.Success(), "expected outcome to be a success")
	assert.Equal(t, StateCompleted, s.State(), "expected supervisor state to match outcome")

	assert.Contains(t, stdout.String(), "hello", "expected stdout to contain 'hello'")
	assert.Contains(t, stderr.String(), "steps", "expected stderr to be mirrored")

	require.Len(t, reporter.byType(progress.EventEngineStarted), 1, "expected one engine started event")
	require.Len(t, reporter.byType(progress.EventCompleted), 1, "expected one completed event")

	stepEvents := reporter.byType(progress.EventStepsDone)
	require.Len(t, stepEvents, 1, "expected one steps done event")
	assert.Equal(t, 1, stepEvents[0].Data.Done)
	assert.Equal(t, 2, stepEvents[0].Data.Total)
	assert.InDelta(t, 50.0, stepEvents[0].Data.Percent, 0.001)
}

func TestSupervisorRun_Failure(t *testing.T) {
	var stdout, stderr bytes.Buffer

	reporter := &recordingReporter{}
	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sh",
			Args: []string{"-c", "echo boom >&2; exit 3"},
		},
		Stdout:   &stdout,
		Stderr:   &stderr,
		Reporter: reporter,
		Signals:  make(chan os.Signal, 1),
	}

	outcome := s.Run(testContext(t))

	assert.Equal(t, StateFailed, outcome.State, "expected failed state")
	assert.Equal(t, 3, outcome.ExitCode, "expected exit code 3")
	require.ErrorIs(t, outcome.Err, ErrEngineFailed, "expected error to be ErrEngineFailed")
	assert.Equal(t, "boom", outcome.LastStderr, "expected last stderr line to be captured")
	assert.Contains(t, string(outcome.StderrTail), "boom", "expected stderr tail to be captured")
	require.Len(t, reporter.byType(progress.EventFailed), 1, "expected one failed event")
}

func TestSupervisorRun_NotFound(t *testing.T) {
	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/not/a/real/command",
		},
		Signals: make(chan os.Signal, 1),
	}

	outcome := s.Run(testContext(t))

	assert.Equal(t, StateFailed, outcome.State, "expected failed state")
	assert.Equal(t, -1, outcome.ExitCode, "expected -1 exit code")

	var notFoundErr *os.PathError

	require.ErrorAs(t, outcome.Err, &notFoundErr, "expected PathError")
	assert.ErrorIs(t, outcome.Err, ErrCouldNotStart, "expected error to be ErrCouldNotStart")
}

func TestSupervisorRun_EnvAndDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping dir/env test on windows")
	}

	tempDir := t.TempDir()

	var stdout bytes.Buffer

	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sh",
			Args: []string{"-c", "echo $FOO; pwd"},
			Dir:  tempDir,
			Env:  map[string]string{"FOO": "BAR"},
		},
		Stdout:  &stdout,
		Stderr:  &bytes.Buffer{},
		Signals: make(chan os.Signal, 1),
	}

	outcome := s.Run(testContext(t))

	assert.Equal(t, 0, outcome.ExitCode, "expected exit code 0")
	out := stdout.String()
	assert.Contains(t, out, "BAR", "expected stdout to contain 'BAR'")
	assert.Contains(t, out, tempDir, "expected stdout to contain tempDir")
}

func TestSupervisorRun_SigIntTerminatesDescendants(t *testing.T) {
	pids := stubProcTree(t, []*process.Process{{Pid: 99991}, {Pid: 99992}})

	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sleep",
			Args: []string{"10"},
		},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		Signals: make(chan os.Signal, 1),
	}

	go func() {
		time.Sleep(500 * time.Millisecond)
		s.Signals <- os.Interrupt
	}()

	ctx := testContext(t)
	outcome := s.Run(ctx)

	assert.Equal(t, StateInterrupted, outcome.State, "expected interrupted state")
	assert.Equal(t, -1, outcome.ExitCode, "expected -1 exit code for signalled process")
	require.ErrorIs(t, outcome.Err, ErrInterrupted, "expected error to be ErrInterrupted")
	require.NoError(t, ctx.Err(), "expected context to be unclosed")
	assert.ElementsMatch(t, []int32{99991, 99992}, pids.all(),
		"expected captured descendants to be terminated")
}

func TestSupervisorRun_SignalledButSuccessfulLeavesDescendants(t *testing.T) {
	pids := stubProcTree(t, []*process.Process{{Pid: 99993}})

	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sh",
			Args: []string{"-c", `trap 'exit 0' INT TERM; sleep 2 & wait $!`},
		},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		Signals: make(chan os.Signal, 1),
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		s.Signals <- os.Interrupt
	}()

	outcome := s.Run(testContext(t))

	assert.Equal(t, StateCompleted, outcome.State,
		"expected a signalled engine that exits successfully to count as completed")
	assert.Equal(t, 0, outcome.ExitCode, "expected exit code 0")
	require.NoError(t, outcome.Err, "unexpected error")
	assert.Empty(t, pids.all(), "expected no descendant to be terminated after a success exit")
}

func TestSupervisorRun_DuplicateSignalKills(t *testing.T) {
	pids := stubProcTree(t, []*process.Process{{Pid: 99994}})

	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sh",
			Args: []string{"-c", `trap '' INT; sleep 10`},
		},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		Signals: make(chan os.Signal, 2),
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		s.Signals <- os.Interrupt
		time.Sleep(300 * time.Millisecond)
		s.Signals <- os.Interrupt
	}()

	outcome := s.Run(testContext(t))

	assert.Equal(t, StateInterrupted, outcome.State, "expected interrupted state")
	assert.Equal(t, -1, outcome.ExitCode, "expected -1 exit code for killed process")
	require.ErrorIs(t, outcome.Err, ErrForceKilled, "expected error to be ErrForceKilled")
	assert.Equal(t, []int32{99994}, pids.all(), "expected captured descendants to be terminated")
}

func TestSupervisorRun_ContextCancelled(t *testing.T) {
	pids := stubProcTree(t, []*process.Process{{Pid: 99995}})

	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sleep",
			Args: []string{"10"},
		},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		Signals: make(chan os.Signal, 1),
	}

	ctx, cancel := context.WithTimeout(testContext(t), 100*time.Millisecond)
	defer cancel()

	outcome := s.Run(ctx)

	assert.Equal(t, StateInterrupted, outcome.State, "expected interrupted state")
	assert.Equal(t, -1, outcome.ExitCode, "expected -1 exit code for killed process")
	require.ErrorIs(t, outcome.Err, ErrAborted, "expected error to be ErrAborted")
	require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded, "expected context to be done")
	assert.Equal(t, []int32{99995}, pids.all(), "expected captured descendants to be terminated")
}

func TestSupervisorRun_HeartbeatEvents(t *testing.T) {
	reporter := &recordingReporter{}
	s := &Supervisor{
		Spec: &engine.CommandSpec{
			Path: "/bin/sleep",
			Args: []string{"1"},
		},
		Stdout:    &bytes.Buffer{},
		Stderr:    &bytes.Buffer{},
		Reporter:  reporter,
		Heartbeat: 100 * time.Millisecond,
		Signals:   make(chan os.Signal, 1),
	}

	outcome := s.Run(testContext(t))

	assert.Equal(t, StateCompleted, outcome.State, "expected completed state")
	assert.NotEmpty(t, reporter.byType(progress.EventHeartbeat), "expected heartbeat events")
	assert.GreaterOrEqual(t, outcome.Elapsed, time.Second, "expected elapsed to cover the run")
}

func TestOutcome_Success(t *testing.T) {
	assert.True(t, Outcome{State: StateCompleted}.Success())
	assert.False(t, Outcome{State: StateFailed}.Success())
	assert.False(t, Outcome{State: StateInterrupted}.Success())
}

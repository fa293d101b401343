// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/engine"
	"github.com/matt-FFFFFF/stoker/internal/progress"
	"github.com/matt-FFFFFF/stoker/internal/signalbroker"
	"github.com/matt-FFFFFF/stoker/internal/teereader"
)

const (
	defaultHeartbeat = 10 * time.Second // Interval for the engine watchdog ticker
	stderrTailSize   = 64 * 1024        // Retained stderr tail for failure reporting
	lastStderrMaxLen = 256              // Display truncation for the last stderr line

	initialScanBufferSize = 64 * 1024
	maxScanBufferSize     = 1024 * 1024
)

var (
	// ErrFailedToCreatePipe is returned when an output pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrCouldNotStart is returned when the engine process could not be spawned.
	ErrCouldNotStart = errors.New("could not start engine process")
	// ErrInterrupted is returned when an operating system signal stopped the run.
	ErrInterrupted = errors.New("run interrupted by signal")
	// ErrForceKilled is returned when a duplicate signal forced engine termination.
	ErrForceKilled = errors.New("duplicate signal received, engine forcefully terminated")
	// ErrAborted is returned when the context was cancelled while the engine was running.
	ErrAborted = errors.New("run aborted, context cancelled")
	// ErrEngineFailed is returned when the engine exited with a non-success code.
	ErrEngineFailed = errors.New("engine exited unsuccessfully")
)

// Outcome is the final account of a supervised run.
type Outcome struct {
	// State is the terminal state the run ended in.
	State State
	// ExitCode is the engine's exit code, or -1 when the engine was killed
	// or never ran.
	ExitCode int
	// Err describes why the run did not complete, nil on success.
	Err error
	// LastStderr is the last complete line the engine wrote to stderr,
	// truncated for display.
	LastStderr string
	// StderrTail is the retained tail of the engine's stderr output.
	StderrTail []byte
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Success reports whether the run ended in StateCompleted.
func (o Outcome) Success() bool {
	return o.State == StateCompleted
}

// Supervisor runs a single engine invocation and tracks it to a terminal
// state. The zero value is not usable: Spec must be set. All other fields
// are optional and default to sensible values in Run.
type Supervisor struct {
	// Spec is the rendered engine invocation to run.
	Spec *engine.CommandSpec
	// Stdout receives mirrored engine standard output. Defaults to os.Stdout.
	Stdout io.Writer
	// Stderr receives mirrored engine standard error. Defaults to os.Stderr.
	Stderr io.Writer
	// Reporter receives progress events parsed from engine output. Defaults
	// to a no-op reporter. The supervisor does not close it.
	Reporter progress.Reporter
	// Heartbeat is the watchdog ticker interval. Defaults to 10 seconds.
	Heartbeat time.Duration
	// Signals delivers termination signals to forward to the engine.
	// Defaults to a broker subscribed to the usual termination signals.
	// Sending on it injects a stop request, which is how the TUI asks a
	// run to stop without a real signal arriving.
	Signals chan os.Signal

	state atomic.Int32
}

// State returns the current lifecycle state of the run.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

// Run spawns the engine process and supervises it until it reaches a
// terminal state. Signals are forwarded to the engine; a duplicate signal of
// the same type, or context cancellation, kills it. When an interrupted run
// does not end in success, descendant processes captured at the time of the
// first stop condition are terminated as well.
func (s *Supervisor) Run(ctx context.Context) Outcome {
	logger := ctxlog.Logger(ctx).With("component", "supervisor").
		With("executable", s.Spec.Path)

	logger.Debug("engine command", "path", s.Spec.Path, "dir", s.Spec.Dir, "args", s.Spec.Args)

	reporter := s.Reporter
	if reporter == nil {
		reporter = progress.NewNullReporter()
	}

	stdout := s.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	stderr := s.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	heartbeat := s.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	if s.Signals == nil {
		s.Signals = signalbroker.New(ctx)
	}

	rOut, wOut, err := os.Pipe()
	if err != nil {
		return s.failBeforeStart(reporter, errors.Join(ErrFailedToCreatePipe, err))
	}

	rErr, wErr, err := os.Pipe()
	if err != nil {
		_ = rOut.Close()
		_ = wOut.Close()

		return s.failBeforeStart(reporter, errors.Join(ErrFailedToCreatePipe, err))
	}

	env := os.Environ()

	for k, v := range s.Spec.Env {
		logger.Debug("adding environment variable", "key", k, "value", v)
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	execName := filepath.Base(s.Spec.Path)
	args := slices.Concat([]string{execName}, s.Spec.Args)

	logger.Debug("starting engine process")

	ps, err := os.StartProcess(s.Spec.Path, args, &os.ProcAttr{
		Dir:   s.Spec.Dir,
		Env:   env,
		Files: []*os.File{os.Stdin, wOut, wErr},
	})
	if err != nil {
		_ = rOut.Close()
		_ = wOut.Close()
		_ = rErr.Close()
		_ = wErr.Close()

		return s.failBeforeStart(reporter, errors.Join(ErrCouldNotStart, err))
	}

	startTime := time.Now()

	s.setState(StateRunning)
	logger.Debug("engine process started", "pid", ps.Pid)
	reporter.Report(progress.Event{
		Type:      progress.EventEngineStarted,
		Message:   fmt.Sprintf("%s started (pid %d)", execName, ps.Pid),
		Timestamp: startTime,
	})

	stderrTee := teereader.NewLastLineTeeReaderSize(rErr, stderrTailSize)

	var streams sync.WaitGroup

	streams.Add(2)

	go func() {
		defer streams.Done()
		streamLines(ctx, rOut, stdout, false, reporter)
	}()

	go func() {
		defer streams.Done()
		streamLines(ctx, stderrTee, stderr, true, reporter)
	}()

	// This is the engine watchdog. It forwards signals to the engine, kills
	// it on a duplicate signal or context cancellation, and emits heartbeat
	// events while the engine runs. The stop reason is recorded under a lock
	// rather than handed over a channel so the watchdog never blocks and can
	// still act on a duplicate signal while the engine ignores the first.
	done := make(chan struct{})
	reason := &killReason{}
	tracker := &descendantTracker{}

	go func() {
		signalCount := make(map[os.Signal]struct{})

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				elapsed := time.Since(startTime).Round(time.Second)
				logger.Debug("engine running", "elapsed", elapsed.String())
				reporter.Report(progress.Event{
					Type:      progress.EventHeartbeat,
					Message:   fmt.Sprintf("running for %s", elapsed),
					Timestamp: time.Now(),
					Data:      progress.EventData{Elapsed: elapsed},
				})

			case sig := <-s.Signals:
				// is this the second signal received of this type?
				if _, ok := signalCount[sig]; ok {
					logger.Info("received duplicate signal, killing engine", "signal", sig.String())
					reason.set(ErrForceKilled)
					killPs(ctx, ps)

					return
				}

				signalCount[sig] = struct{}{}

				logger.Info("received signal, forwarding to engine", "signal", sig.String())

				// The descendants must be captured while the engine is still
				// alive, before the forwarded signal can bring it down.
				tracker.snapshot(ctx, ps.Pid)
				reason.set(ErrInterrupted)

				if err := ps.Signal(sig); err != nil {
					logger.Info("failed to forward signal", "signal", sig.String(), "error", err)
				}

			case <-ctx.Done():
				logger.Info("context done, killing engine")
				tracker.snapshot(ctx, ps.Pid)
				reason.set(ErrAborted)
				killPs(ctx, ps)

				return

			case <-done:
				return
			}
		}
	}()

	logger.Debug("waiting for engine to finish")

	state, psErr := ps.Wait()

	// Close the write ends so the stream readers see EOF, then join them
	// before inspecting the captured output.
	_ = wOut.Close()
	_ = wErr.Close()

	streams.Wait()

	_ = rOut.Close()
	_ = rErr.Close()

	exitCode := state.ExitCode()

	logger.Debug("engine finished", "exitCode", exitCode)

	close(done)

	// A reason recorded by the watchdog means a stop condition was seen
	// before the engine exited.
	stopErr := reason.get()

	outcome := Outcome{
		ExitCode:   exitCode,
		LastStderr: stderrTee.GetLastLine(lastStderrMaxLen),
		StderrTail: stderrTee.GetFullBufferBytes(),
		Elapsed:    time.Since(startTime),
	}

	switch {
	// A stop condition was seen and the engine did not end in success:
	// the run was interrupted and surviving descendants are terminated.
	case stopErr != nil && (exitCode != 0 || psErr != nil):
		outcome.State = StateInterrupted
		outcome.Err = stopErr

		stopDescendants(ctx, tracker)
	// The engine exited successfully. A forwarded signal that still ended
	// in a success exit counts as completion and descendants are left alone.
	case exitCode == 0 && psErr == nil:
		outcome.State = StateCompleted
	// Wait itself failed.
	case psErr != nil:
		outcome.State = StateFailed
		outcome.Err = errors.Join(ErrEngineFailed, psErr)

		if outcome.ExitCode == 0 {
			outcome.ExitCode = -1
		}
	// Plain non-success exit.
	default:
		outcome.State = StateFailed
		outcome.Err = fmt.Errorf("%w: exit code %d", ErrEngineFailed, exitCode)
	}

	s.setState(outcome.State)
	s.reportOutcome(reporter, outcome)

	return outcome
}

// failBeforeStart marks the run failed without the engine ever spawning.
func (s *Supervisor) failBeforeStart(reporter progress.Reporter, err error) Outcome {
	outcome := Outcome{
		State:    StateFailed,
		ExitCode: -1,
		Err:      err,
	}

	s.setState(StateFailed)
	s.reportOutcome(reporter, outcome)

	return outcome
}

func (s *Supervisor) reportOutcome(reporter progress.Reporter, outcome Outcome) {
	var eventType progress.EventType

	switch outcome.State {
	case StateCompleted:
		eventType = progress.EventCompleted
	case StateInterrupted:
		eventType = progress.EventInterrupted
	default:
		eventType = progress.EventFailed
	}

	message := fmt.Sprintf("run %s", outcome.State)
	if outcome.Err != nil {
		message = fmt.Sprintf("run %s: %s", outcome.State, outcome.Err)
	}

	reporter.Report(progress.Event{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
		Data: progress.EventData{
			ExitCode: outcome.ExitCode,
			Error:    outcome.Err,
			Elapsed:  outcome.Elapsed,
		},
	})
}

// killReason records why the watchdog stopped the engine. The last reason
// recorded wins, so an interrupt that escalates to a forced kill surfaces as
// the forced kill.
type killReason struct {
	mu  sync.Mutex
	err error
}

func (k *killReason) set(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.err = err
}

func (k *killReason) get() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.err
}

// streamLines mirrors engine output to w line by line, reporting each line
// as a progress event. When line scanning fails the remainder is copied
// through verbatim so the engine can never block on a full pipe.
func streamLines(ctx context.Context, r io.Reader, w io.Writer, isStderr bool, reporter progress.Reporter) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialScanBufferSize), maxScanBufferSize)

	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(w, line) //nolint:errcheck
		reporter.Report(progress.ParseLine(line, isStderr))
	}

	if err := scanner.Err(); err != nil {
		ctxlog.Debug(ctx, "engine output scan stopped", "stderr", isStderr, "error", err)

		_, _ = io.Copy(w, r)
	}
}

// killPs kills the engine process.
func killPs(ctx context.Context, ps *os.Process) {
	if err := ps.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			ctxlog.Logger(ctx).Debug("process already done", "pid", ps.Pid)
			return
		}

		ctxlog.Logger(ctx).Error("process kill error", "pid", ps.Pid, "error", err)
	}

	ctxlog.Logger(ctx).Info("process killed", "pid", ps.Pid)
}

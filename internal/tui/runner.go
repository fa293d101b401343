// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/stoker/internal/progress"
	"github.com/matt-FFFFFF/stoker/internal/signalbroker"
	"github.com/matt-FFFFFF/stoker/internal/supervise"
)

// Runner manages the TUI program and its link to a supervised engine run.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *Reporter
	mutex    sync.Mutex
}

// Reporter implements progress.Reporter and forwards events to the TUI.
type Reporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewReporter creates a new TUI progress reporter.
func NewReporter(program *tea.Program) *Reporter {
	return &Reporter{
		program: program,
	}
}

// Report implements progress.Reporter.Report.
func (tr *Reporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	tr.program.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.Close.
func (tr *Reporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.closed = true
}

// NewRunner creates a new TUI runner. The context should carry a logger
// writing to a buffer so log output can be replayed once the terminal is
// restored.
func NewRunner(ctx context.Context) *Runner {
	model := NewModel(ctx)
	program := tea.NewProgram(model, tea.WithAltScreen())
	reporter := NewReporter(program)

	return &Runner{
		model:    model,
		program:  program,
		reporter: reporter,
	}
}

// SetTitle sets the run name shown in the TUI header. Call before Run.
func (r *Runner) SetTitle(title string) {
	r.model.SetTitle(title)
}

// GetReporter returns the progress reporter feeding this TUI.
func (r *Runner) GetReporter() progress.Reporter {
	return r.reporter
}

// Run executes the supervised run while the TUI displays its progress,
// returning the run's outcome and any error from the TUI itself. Closing
// the view early leaves the engine running headless; the supervisor still
// returns when the engine finishes or the context is cancelled.
func (r *Runner) Run(ctx context.Context, sup *supervise.Supervisor) (supervise.Outcome, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sup.Reporter = r.reporter

	if sup.Signals == nil {
		sup.Signals = signalbroker.New(ctx)
	}

	// The terminal is in raw mode while the TUI runs, so ctrl+c never
	// arrives as a signal. Keyboard stop requests are injected straight
	// into the supervisor's signal channel instead.
	r.model.stop = func() {
		select {
		case sup.Signals <- os.Interrupt:
		default:
		}
	}

	if r.model.title == "" && sup.Spec != nil {
		r.model.title = filepath.Base(sup.Spec.Path)
	}

	outcomeCh := make(chan supervise.Outcome, 1)

	go func() {
		outcomeCh <- sup.Run(ctx)
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var (
		outcome supervise.Outcome
		tuiErr  error
	)

	select {
	case outcome = <-outcomeCh:
		// Leave the final state on screen until the user dismisses it.
		r.program.Send(RunFinishedMsg{Outcome: outcome})
		tuiErr = <-tuiDone

	case tuiErr = <-tuiDone:
		// The view is gone but the engine is still running.
		outcome = <-outcomeCh

	case <-ctx.Done():
		r.program.Quit()
		tuiErr = <-tuiDone
		outcome = <-outcomeCh
	}

	r.reporter.Close()

	return outcome, tuiErr
}

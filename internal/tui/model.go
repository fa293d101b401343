// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"slices"
	"strings"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/progress"
	"github.com/matt-FFFFFF/stoker/internal/supervise"
)

const (
	defaultBarWidth     = 40
	maxBarWidth         = 60
	minBarWidth         = 10
	barPadding          = 4
	defaultContentWidth = 80
	minContentWidth     = 20
	maxFailedSteps      = 5 // Failed rules rendered before eliding the rest.
	elapsedRounding     = time.Second
	percentDivisor      = 100.0
	ellipsis            = "..."
)

// Model is the bubbletea model for a single supervised engine run. All
// mutation happens on the bubbletea event loop; the model is not safe for
// concurrent use outside it.
type Model struct {
	ctx     context.Context
	styles  *Styles
	spinner spinner.Model
	bar     progressbar.Model

	title     string
	width     int
	height    int
	startTime time.Time

	stepsDone   int
	stepsTotal  int
	percent     float64
	currentStep string
	lastOutput  string
	failedSteps []string

	done          bool
	outcome       supervise.Outcome
	stopRequested bool
	quitting      bool

	stop func() // Requests an engine stop; wired by the Runner.
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title   lipgloss.Style
	Running lipgloss.Style
	Success lipgloss.Style
	Failed  lipgloss.Style
	Step    lipgloss.Style
	Output  lipgloss.Style
	Error   lipgloss.Style
	Elapsed lipgloss.Style
	Help    lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Step: lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
		Elapsed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1),
	}
}

// NewModel creates a new TUI model. The context carries the logger that
// records TUI-side actions for replay once the terminal is restored.
func NewModel(ctx context.Context) *Model {
	styles := NewStyles()

	return &Model{
		ctx:    ctx,
		styles: styles,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styles.Running),
		),
		bar: progressbar.New(
			progressbar.WithDefaultGradient(),
			progressbar.WithWidth(defaultBarWidth),
		),
	}
}

// SetTitle sets the display name for the run. Call before the program starts.
func (m *Model) SetTitle(title string) {
	m.title = title
}

// processProgressEvent folds a progress event into the model state.
func (m *Model) processProgressEvent(event progress.Event) {
	switch event.Type {
	case progress.EventEngineStarted:
		m.startTime = event.Timestamp

	case progress.EventStepStarted:
		m.currentStep = event.Data.Step

	case progress.EventStepsDone:
		m.stepsDone = event.Data.Done
		m.stepsTotal = event.Data.Total
		m.percent = event.Data.Percent

	case progress.EventStepFailed:
		step := event.Data.Step
		if step != "" && !slices.Contains(m.failedSteps, step) {
			m.failedSteps = append(m.failedSteps, step)
		}

	case progress.EventOutput:
		if line := strings.TrimSpace(event.Data.OutputLine); line != "" {
			m.lastOutput = line
		}

	case progress.EventCompleted:
		m.percent = percentDivisor
		if m.stepsTotal > 0 {
			m.stepsDone = m.stepsTotal
		}
	}
}

// requestStop asks the engine to stop. A repeated request escalates the same
// way a repeated termination signal does.
func (m *Model) requestStop() {
	m.stopRequested = true

	if m.stop != nil {
		m.stop()
	}

	ctxlog.Info(m.ctx, "stop requested from tui")
}

// elapsed returns the wall-clock duration to display for the run.
func (m *Model) elapsed() time.Duration {
	switch {
	case m.done:
		return m.outcome.Elapsed.Round(elapsedRounding)
	case m.startTime.IsZero():
		return 0
	default:
		return time.Since(m.startTime).Round(elapsedRounding)
	}
}

// resizeBar fits the progress bar to the window width.
func (m *Model) resizeBar() {
	m.bar.Width = min(max(m.width-barPadding, minBarWidth), maxBarWidth)
}

// contentWidth returns the usable width for text lines.
func (m *Model) contentWidth() int {
	if m.width == 0 {
		return defaultContentWidth
	}

	return max(m.width-2, minContentWidth) //nolint:mnd // Leave a margin column.
}

// truncate clips s to width bytes, appending an ellipsis when it was cut.
func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}

	if width <= len(ellipsis) {
		return s[:width]
	}

	return s[:width-len(ellipsis)] + ellipsis
}

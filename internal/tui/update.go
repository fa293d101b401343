// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/stoker/internal/progress"
	"github.com/matt-FFFFFF/stoker/internal/supervise"
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// RunFinishedMsg indicates that the supervised run reached a terminal state.
type RunFinishedMsg struct {
	Outcome supervise.Outcome
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.spinner.Tick,
	)
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeBar()

		return m, nil

	case spinner.TickMsg:
		if m.done {
			// Freeze the spinner once the run is over.
			return m, nil
		}

		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case ProgressEventMsg:
		m.processProgressEvent(msg.Event)
		return m, nil

	case RunFinishedMsg:
		m.done = true
		m.outcome = msg.Outcome

		if m.outcome.Success() {
			m.percent = percentDivisor

			if m.stepsTotal > 0 {
				m.stepsDone = m.stepsTotal
			}
		}

		return m, nil

	case tea.QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		if m.done {
			m.quitting = true
			return m, tea.Quit
		}

		m.requestStop()

		return m, nil
	}

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.percent / percentDivisor))
	b.WriteString("\n")
	b.WriteString(m.renderSteps())
	b.WriteString("\n")

	if m.currentStep != "" && !m.done {
		b.WriteString(m.styles.Step.Render("rule " + m.currentStep))
		b.WriteString("\n")
	}

	if m.lastOutput != "" && !m.done {
		b.WriteString(m.styles.Output.Render(truncate(m.lastOutput, m.contentWidth())))
		b.WriteString("\n")
	}

	m.renderFailedSteps(&b)

	if m.done {
		b.WriteString(m.renderOutcome())
	}

	b.WriteString(m.renderHelp())

	return b.String()
}

// renderHeader renders the title line with the spinner and elapsed time.
func (m *Model) renderHeader() string {
	title := m.title
	if title == "" {
		title = "stoker run"
	}

	parts := make([]string, 0, 3) //nolint:mnd // spinner, title, elapsed
	if !m.done {
		parts = append(parts, m.spinner.View())
	}

	parts = append(parts, m.styles.Title.Render("🧬 "+title))

	if e := m.elapsed(); e > 0 {
		parts = append(parts, m.styles.Elapsed.Render(e.String()))
	}

	return strings.Join(parts, " ")
}

// renderSteps renders the steps-completed line.
func (m *Model) renderSteps() string {
	if m.stepsTotal == 0 {
		return m.styles.Output.Render("waiting for the engine to report steps")
	}

	return fmt.Sprintf("%d of %d steps", m.stepsDone, m.stepsTotal)
}

// renderFailedSteps renders the failed rules, eliding after a few.
func (m *Model) renderFailedSteps(b *strings.Builder) {
	for i, step := range m.failedSteps {
		if i == maxFailedSteps {
			b.WriteString(m.styles.Error.Render(
				fmt.Sprintf("...and %d more", len(m.failedSteps)-maxFailedSteps)))
			b.WriteString("\n")

			return
		}

		b.WriteString(m.styles.Error.Render("failed rule " + step))
		b.WriteString("\n")
	}
}

// renderOutcome renders the terminal state banner.
func (m *Model) renderOutcome() string {
	var b strings.Builder

	elapsed := m.outcome.Elapsed.Round(elapsedRounding)

	switch m.outcome.State {
	case supervise.StateCompleted:
		b.WriteString(m.styles.Success.Render(
			fmt.Sprintf("✅ run completed in %s", elapsed)))
	case supervise.StateInterrupted:
		b.WriteString(m.styles.Failed.Render(
			fmt.Sprintf("⚠️  run interrupted after %s", elapsed)))
	default:
		b.WriteString(m.styles.Failed.Render(
			fmt.Sprintf("❌ run failed (exit code %d)", m.outcome.ExitCode)))
	}

	b.WriteString("\n")

	if !m.outcome.Success() && m.outcome.LastStderr != "" {
		b.WriteString(m.styles.Error.Render(truncate(m.outcome.LastStderr, m.contentWidth())))
		b.WriteString("\n")
	}

	return b.String()
}

// renderHelp renders the help line for the current state.
func (m *Model) renderHelp() string {
	switch {
	case m.done:
		return m.styles.Help.Render("press 'q' to return to the terminal")
	case m.stopRequested:
		return m.styles.Help.Render("stopping, press 'q' again to force kill")
	default:
		return m.styles.Help.Render("'q' or ctrl+c to stop the run")
	}
}

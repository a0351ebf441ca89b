// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// transferOp runs a device operation, reporting through report. It returns
// result lines shown when the operation completes.
type transferOp func(ctx context.Context, report dataman.ProgressCallback) ([]string, error)

// Messages
type progressMsg dataman.Progress
type opDoneMsg struct {
	lines []string
	err   error
}
type tickMsg time.Time

// transferModel shows one operation's progress.
type transferModel struct {
	title    string
	connInfo string
	started  time.Time
	now      time.Time
	phase    string
	current  dataman.Progress
	history  []string
	spinner  spinner.Model
	bar      progress.Model
	done     bool
	lines    []string
	err      error
	cancel   context.CancelFunc
	quitting bool
}

func newTransferModel(title, connInfo string, cancel context.CancelFunc) transferModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return transferModel{
		title:    title,
		connInfo: connInfo,
		started:  time.Now(),
		now:      time.Now(),
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel:   cancel,
	}
}

func transferTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m transferModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, transferTickCmd())
}

func (m transferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.done {
				return m, tea.Quit
			}
			m.quitting = true
			m.cancel()
		case "enter":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case progressMsg:
		p := dataman.Progress(msg)
		if p.Phase != m.phase {
			if m.phase != "" {
				m.history = append(m.history, phaseTitle(m.phase))
			}
			m.phase = p.Phase
		}
		m.current = p
		return m, nil

	case opDoneMsg:
		m.done = true
		m.lines = msg.lines
		m.err = msg.err
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, transferTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m transferModel) View() string {
	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	helpText := "q=cancel"
	if m.done {
		helpText = "q=quit"
	}
	s.WriteString(titleStyle.Render("S4CTL " + strings.ToUpper(m.title)))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", m.connInfo, helpText)))
	s.WriteString("\n\n")

	var body strings.Builder
	for _, h := range m.history {
		body.WriteString(fmt.Sprintf("%s %s\n", valueStyle.Render("✓"), h))
	}

	switch {
	case m.done && m.err != nil:
		body.WriteString(errorStyle.Render("Failed: " + m.err.Error()))
		body.WriteString("\n")
	case m.done:
		body.WriteString(fmt.Sprintf("%s %s\n", valueStyle.Render("✓"), phaseTitle(dataman.PhaseComplete)))
		for _, line := range m.lines {
			body.WriteString(fmt.Sprintf("  %s\n", line))
		}
	case m.quitting:
		body.WriteString(warningStyle.Render("Cancelling..."))
		body.WriteString("\n")
	case m.phase != "":
		body.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), phaseTitle(m.phase)))
		if m.current.Total > 0 {
			body.WriteString(m.bar.ViewAs(m.current.Percentage() / 100))
			body.WriteString(fmt.Sprintf("  %d/%d bytes\n", m.current.Done, m.current.Total))
		}
	default:
		body.WriteString(fmt.Sprintf("%s Connecting\n", m.spinner.View()))
	}

	elapsed := m.now.Sub(m.started).Round(100 * time.Millisecond)
	body.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Elapsed:"), valueStyle.Render(elapsed.String())))

	s.WriteString(boxStyle.Render(body.String()))
	s.WriteString("\n")
	return s.String()
}

// runTransferTUI runs op under a full screen progress view and returns its
// error once the user dismisses the view.
func runTransferTUI(title, connInfo string, op transferOp) error {
	ctx, cancel := commandContext()
	defer cancel()

	m := newTransferModel(title, connInfo, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		lines, err := op(ctx, func(pr dataman.Progress) {
			p.Send(progressMsg(pr))
		})
		p.Send(opDoneMsg{lines: lines, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	fm := final.(transferModel)
	if !fm.done {
		return fmt.Errorf("cancelled")
	}
	for _, line := range fm.lines {
		fmt.Println(line)
	}
	return fm.err
}

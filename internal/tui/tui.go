// Package tui renders the §4.7 job state machine as it runs: a small
// charmbracelet/bubbletea program driven by progress messages pushed from
// the pipeline orchestrator, styled with charmbracelet/lipgloss, modelled
// on briefly/internal/tui.Model's pipelineStep enum but scoped to this
// job's five phases instead of briefly's fetch/cluster/digest pipeline.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docsum/internal/core"
)

const spinnerInterval = 120 * time.Millisecond

var phaseOrder = []core.JobPhase{
	core.JobDetecting,
	core.JobPartitioning,
	core.JobSampling,
	core.JobMapping,
	core.JobReducing,
	core.JobDone,
}

// ProgressMsg is pushed into the program whenever the job state changes.
// The orchestrator owns the JobState; this package only renders snapshots
// of it, so the struct is passed by value.
type ProgressMsg struct {
	State core.JobState
	Label string // e.g. the work currently being mapped
}

// DoneMsg signals the job finished, successfully or not.
type DoneMsg struct {
	Result string
	Err    error
}

// Model is the bubbletea model for a single job's progress display.
type Model struct {
	title    string
	state    core.JobState
	label    string
	result   string
	err      error
	quitting bool
	spinner  int
}

// New returns the initial model for a job titled title.
func New(title string) Model {
	return Model{title: title, state: core.JobState{Phase: core.JobReady}}
}

// Init starts the spinner ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg { return tickMsg{} })
}

// Update handles progress, completion, and key events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		m.spinner = (m.spinner + 1) % len(spinnerFrames)
		return m, tickCmd()
	case ProgressMsg:
		m.state = msg.State
		m.label = msg.Label
	case DoneMsg:
		m.result = msg.Result
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the phase list with the current phase spinning, completed
// phases checked off, and a status line for the map phase's per-work
// counter.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	for _, phase := range phaseOrder {
		b.WriteString(m.renderPhaseLine(phase))
		b.WriteString("\n")
	}

	if m.state.Phase == core.JobMapping && m.state.MapTotal > 0 {
		b.WriteString(statusStyle.Render(fmt.Sprintf("  mapping %d/%d works", m.state.MapDone, m.state.MapTotal)))
		b.WriteString("\n")
	}
	if m.label != "" && m.state.Phase != core.JobDone && m.state.Phase != core.JobFailed {
		b.WriteString(statusStyle.Render("  " + m.label))
		b.WriteString("\n")
	}
	if len(m.state.WorkErrors) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  %d work(s) failed to summarize (isolated)", len(m.state.WorkErrors))))
		b.WriteString("\n")
	}

	if m.state.Phase == core.JobFailed && m.state.Err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("failed: " + m.state.Err.Error()))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.quitting && m.err == nil && m.state.Phase == core.JobDone {
		b.WriteString("\n")
		b.WriteString(doneStyle.Render("done"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderPhaseLine(phase core.JobPhase) string {
	marker := "  "
	style := pendingStyle
	switch {
	case m.state.Phase == core.JobFailed:
		if phaseIndex(phase) < phaseIndex(m.state.Phase) {
			marker = "✓ "
			style = doneStyle
		}
	case phaseIndex(phase) < phaseIndex(m.state.Phase):
		marker = "✓ "
		style = doneStyle
	case phase == m.state.Phase:
		marker = spinnerFrames[m.spinner] + " "
		style = activeStyle
	}
	return style.Render(marker + string(phase))
}

func phaseIndex(phase core.JobPhase) int {
	for i, p := range phaseOrder {
		if p == phase {
			return i
		}
	}
	return -1
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("105"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("71"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bnema/cuedesk/internal/application"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type turnDoneMsg struct {
	resp application.Response
}

type thinkingSpinnerModel struct {
	spinner spinner.Model
	label   string
	run     tea.Cmd
	resp    application.Response
	done    bool
}

func newThinkingSpinnerModel(label string, run tea.Cmd) thinkingSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return thinkingSpinnerModel{
		spinner: s,
		label:   label,
		run:     run,
	}
}

func (m thinkingSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m thinkingSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case turnDoneMsg:
		m.done = true
		m.resp = msg.resp
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m thinkingSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// runWithSpinner shows a spinner on output while one buffered turn runs.
func runWithSpinner(ctx context.Context, output io.Writer, turn func(context.Context) application.Response) (application.Response, error) {
	runCmd := func() tea.Msg {
		return turnDoneMsg{resp: turn(ctx)}
	}

	p := tea.NewProgram(
		newThinkingSpinnerModel("Thinking...", runCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return application.Response{}, err
	}

	result, ok := finalModel.(thinkingSpinnerModel)
	if !ok {
		return application.Response{}, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.resp, nil
}

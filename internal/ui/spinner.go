package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	huhspinner "github.com/charmbracelet/huh/spinner"
)

// ErrInterrupted is returned when the operator presses ctrl+c under a spinner
var ErrInterrupted = errors.New("interrupted")

// actionDoneMsg signals the action completed
type actionDoneMsg struct{}

// blockingSpinnerModel runs a spinner while an action executes
type blockingSpinnerModel struct {
	spinner    spinner.Model
	title      string
	ctx        context.Context
	cancel     context.CancelFunc
	action     func(ctx context.Context)
	cancelling bool
	done       bool
	err        error
}

// RunWithSpinner executes an action while displaying a spinner. The action
// reports its own errors through captured variables:
//
//	var path string
//	var dlErr error
//	err := RunWithSpinner("Downloading...", func(ctx context.Context) {
//	    path, dlErr = client.Download(ctx, locator, dir)
//	})
//
// ctrl+c cancels ctx; RunWithSpinner still waits for the action to return.
func RunWithSpinner(title string, action func(ctx context.Context)) error {
	m := newBlockingSpinner(title, action)
	defer m.cancel()

	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("spinner program error: %w", err)
	}

	final := finalModel.(blockingSpinnerModel)
	return final.err
}

func newBlockingSpinner(title string, action func(ctx context.Context)) blockingSpinnerModel {
	ctx, cancel := context.WithCancel(context.Background())
	return blockingSpinnerModel{
		spinner: NewAppSpinner(),
		title:   title,
		ctx:     ctx,
		cancel:  cancel,
		action:  action,
	}
}

// RunLocalTask runs a short filesystem task under huh's spinner
func RunLocalTask(title string, action func()) error {
	return huhspinner.New().
		Title(title).
		Action(action).
		Run()
}

func (m blockingSpinnerModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runAction(),
	)
}

func (m blockingSpinnerModel) runAction() tea.Cmd {
	return func() tea.Msg {
		m.action(m.ctx)
		return actionDoneMsg{}
	}
}

func (m blockingSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelling {
			m.cancelling = true
			m.err = ErrInterrupted
			m.title = "Cancelling..."
			m.cancel()
		}
	}

	return m, nil
}

func (m blockingSpinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), RenderNormal(m.title))
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/candid/did"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/internal/config"
	"github.com/wippyai/candid/proxy"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectMethod modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfg      config.Config
	proxy    *proxy.Proxy
	release  func()
	result   string
	stubs    []*proxy.Stub
	input    textinput.Model
	selected int
	state    modelState
}

func newInteractiveModel(cfg config.Config) *interactiveModel {
	return &interactiveModel{cfg: cfg, state: stateSelectMethod}
}

type connectedMsg struct {
	err     error
	proxy   *proxy.Proxy
	release func()
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.connect
}

func (m *interactiveModel) connect() tea.Msg {
	p, release, err := connect(context.Background(), m.cfg)
	if err != nil {
		return connectedMsg{err: err}
	}
	return connectedMsg{proxy: p, release: release}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "q":
			if m.state != stateInputArgs {
				return m, m.quit()
			}

		case "up", "k":
			if m.state == stateSelectMethod && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectMethod && m.selected < len(m.stubs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectMethod:
				if len(m.stubs) == 0 {
					return m, nil
				}
				if len(m.stubs[m.selected].Type().Args) == 0 {
					return m, m.callMethod
				}
				m.prepareInput()
				m.state = stateInputArgs
				return m, textinput.Blink

			case stateInputArgs:
				return m, m.callMethod

			case stateShowResult:
				m.reset()
			}
			return m, nil

		case "esc":
			if m.state != stateSelectMethod {
				m.reset()
			}
			return m, nil
		}

	case connectedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.proxy = msg.proxy
		m.release = msg.release
		m.stubs = msg.proxy.Methods()

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) quit() tea.Cmd {
	if m.release != nil {
		m.release()
	}
	return tea.Quit
}

func (m *interactiveModel) reset() {
	m.state = stateSelectMethod
	m.result = ""
	m.err = nil
}

func (m *interactiveModel) prepareInput() {
	ft := m.stubs[m.selected].Type()
	ti := textinput.New()
	ti.Placeholder = idl.FormatTypes(ft.Args)
	ti.Prompt = "args: "
	ti.Width = 60
	ti.Focus()
	m.input = ti
}

func (m *interactiveModel) callMethod() tea.Msg {
	stub := m.stubs[m.selected]
	ft := stub.Type()

	var text string
	if len(ft.Args) > 0 {
		text = m.input.Value()
	}
	args, err := did.ParseValues(text, ft.Args)
	if err != nil {
		return callResultMsg{err: err}
	}

	ctx := context.Background()
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	out, err := stub.Call(ctx, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: idl.FormatArgs(out, ft.Results)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.proxy == nil {
		return "Connecting..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Candid"))
	b.WriteString(" ")
	b.WriteString(m.cfg.Transport)
	if m.cfg.Transport != config.TransportLoopback {
		b.WriteString(" ")
		b.WriteString(m.cfg.Addr)
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectMethod:
		b.WriteString("Select a method to call:\n\n")
		for i, s := range m.stubs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatStub(s)))
			} else {
				b.WriteString("  " + formatStub(s))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		s := m.stubs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", methodStyle.Render(s.Name())))
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(typeStyle.Render(idl.FormatTypes(s.Type().Args)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		s := m.stubs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", methodStyle.Render(s.Name())))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatStub(s *proxy.Stub) string {
	ft := s.Type()
	out := methodStyle.Render(s.Name()) + " " +
		typeStyle.Render(idl.FormatTypes(ft.Args)+" -> "+idl.FormatTypes(ft.Results))
	if ft.Modes != 0 {
		out += " " + modeStyle.Render(ft.Modes.String())
	}
	return out
}

func runInteractive(cfg config.Config) error {
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

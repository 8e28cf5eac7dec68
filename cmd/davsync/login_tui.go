package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldServer = iota
	fieldUsername
	fieldPassword
	fieldCount
)

const (
	txtTitle          = "DavSync login"
	txtServerPrompt   = "Server   "
	txtUsernamePrompt = "Username "
	txtPasswordPrompt = "Password "
	txtTesting        = "Testing connection..."
	txtMissing        = "All fields are required"
	txtHelp           = "Tab/↓ next field. Enter on the last field to submit. Esc or Ctrl+C to quit."
)

var (
	focusedStyle     = green
	helpStyle        = gray
	errorTextStyle   = red
	errorHeaderStyle = red.Bold(true)
	spinnerStyle     = cyan
	placeholderStyle = gray
	titleStyle       = cyan.Bold(true)
)

type LoginTUIOpts struct {
	ServerURL  string
	Username   string
	LocalPath  string
	ConfigPath string
	// Submit tests the credentials. A nil error ends the TUI.
	Submit func(server, username, password string) error
}

type loginModel struct {
	opts *LoginTUIOpts

	inputs  []textinput.Model
	focus   int
	spinner spinner.Model

	isLoading    bool
	errorMessage string
	done         bool
	cancelled    bool
}

type submitDoneMsg struct{ err error }

func newLoginModel(opts *LoginTUIOpts) loginModel {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = 256
		in.Width = 64
		in.PromptStyle = focusedStyle
		in.TextStyle = focusedStyle
		in.PlaceholderStyle = placeholderStyle
		inputs[i] = in
	}

	inputs[fieldServer].Prompt = txtServerPrompt
	inputs[fieldServer].Placeholder = "https://dav.example.com/dav/"
	inputs[fieldServer].SetValue(opts.ServerURL)

	inputs[fieldUsername].Prompt = txtUsernamePrompt
	inputs[fieldUsername].Placeholder = "you@example.com"
	inputs[fieldUsername].SetValue(opts.Username)

	inputs[fieldPassword].Prompt = txtPasswordPrompt
	inputs[fieldPassword].Placeholder = "app password"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := loginModel{opts: opts, inputs: inputs, spinner: s}
	// start at the first empty field
	m.focus = fieldPassword
	for i := fieldServer; i < fieldPassword; i++ {
		if inputs[i].Value() == "" {
			m.focus = i
			break
		}
	}
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyTab, tea.KeyDown:
			return m.moveFocus(1), textinput.Blink
		case tea.KeyShiftTab, tea.KeyUp:
			return m.moveFocus(-1), textinput.Blink
		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			if m.focus < fieldPassword {
				return m.moveFocus(1), textinput.Blink
			}
			return m.submit()
		}

		if m.isLoading {
			return m, nil
		}
		m.errorMessage = ""
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case submitDoneMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("%s %s", errorHeaderStyle.Render("ERROR:"), msg.err.Error())
			m.inputs[m.focus].Focus()
			return m, textinput.Blink
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m loginModel) moveFocus(delta int) loginModel {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + fieldCount) % fieldCount
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) values() (server, username, password string) {
	return strings.TrimSpace(m.inputs[fieldServer].Value()),
		strings.TrimSpace(m.inputs[fieldUsername].Value()),
		m.inputs[fieldPassword].Value()
}

func (m loginModel) submit() (tea.Model, tea.Cmd) {
	server, username, password := m.values()
	if server == "" || username == "" || password == "" {
		m.errorMessage = txtMissing
		return m, nil
	}

	m.errorMessage = ""
	m.isLoading = true
	m.inputs[m.focus].Blur()

	submit := m.opts.Submit
	return m, func() tea.Msg {
		return submitDoneMsg{err: submit(server, username, password)}
	}
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(txtTitle))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Local   "), green.Render(m.opts.LocalPath)))
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Config  "), green.Render(m.opts.ConfigPath)))
	b.WriteString("\n")

	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}

	if m.isLoading {
		b.WriteString(fmt.Sprintf("\n%s %s\n", m.spinner.View(), txtTesting))
	}
	if m.errorMessage != "" {
		b.WriteString("\n")
		b.WriteString(errorTextStyle.Render(m.errorMessage))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(txtHelp))
	b.WriteString("\n")
	return b.String()
}

// RunLoginTUI collects and checks credentials interactively.
func RunLoginTUI(opts LoginTUIOpts) error {
	final, err := tea.NewProgram(newLoginModel(&opts)).Run()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if fm, ok := final.(loginModel); ok && !fm.done {
		return fmt.Errorf("login cancelled")
	}
	return nil
}

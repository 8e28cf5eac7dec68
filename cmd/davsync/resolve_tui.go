package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/davsync/davsync/internal/cloudsync"
)

type choice struct {
	resolution cloudsync.ConflictResolution
	label      string
	hint       string
}

var resolveChoices = []choice{
	{cloudsync.KeepLocal, "Keep local", "upload the local file over the remote one"},
	{cloudsync.KeepRemote, "Keep remote", "download the remote file over the local one"},
	{cloudsync.KeepBoth, "Keep both", "back up the local file on both sides, then take the remote one"},
}

type pickerModel struct {
	cursor    int
	chosen    bool
	cancelled bool
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(resolveChoices)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(cyan.Bold(true).Render("How should the conflict be resolved?"))
	b.WriteString("\n\n")
	for i, c := range resolveChoices {
		if i == m.cursor {
			b.WriteString(green.Render(fmt.Sprintf("> %s", c.label)))
			b.WriteString("  " + lightGray.Render(c.hint))
		} else {
			b.WriteString(fmt.Sprintf("  %s", c.label))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(gray.Render("↑/↓ to move, enter to pick, esc to cancel"))
	b.WriteString("\n")
	return b.String()
}

func (m pickerModel) selection() (cloudsync.ConflictResolution, error) {
	if m.cancelled || !m.chosen {
		return 0, errors.New("resolve cancelled")
	}
	return resolveChoices[m.cursor].resolution, nil
}

// RunResolvePicker asks the user for a resolution.
func RunResolvePicker() (cloudsync.ConflictResolution, error) {
	final, err := tea.NewProgram(pickerModel{}).Run()
	if err != nil {
		return 0, fmt.Errorf("resolve picker: %w", err)
	}
	return final.(pickerModel).selection()
}

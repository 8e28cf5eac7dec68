package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davsync/davsync/internal/cloudsync"
)

func press(m tea.Model, keys ...tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(k)
	}
	return m, cmd
}

func typed(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPickerModel(t *testing.T) {
	down := tea.KeyMsg{Type: tea.KeyDown}
	up := tea.KeyMsg{Type: tea.KeyUp}
	enter := tea.KeyMsg{Type: tea.KeyEnter}

	t.Run("default choice", func(t *testing.T) {
		m, cmd := press(pickerModel{}, enter)
		require.NotNil(t, cmd)
		res, err := m.(pickerModel).selection()
		require.NoError(t, err)
		assert.Equal(t, cloudsync.KeepLocal, res)
	})

	t.Run("cursor is clamped", func(t *testing.T) {
		m, _ := press(pickerModel{}, up, down, down, down, down, enter)
		res, err := m.(pickerModel).selection()
		require.NoError(t, err)
		assert.Equal(t, cloudsync.KeepBoth, res)
	})

	t.Run("vim keys", func(t *testing.T) {
		m, _ := press(pickerModel{}, typed("j"), typed("j"), typed("k"), enter)
		res, err := m.(pickerModel).selection()
		require.NoError(t, err)
		assert.Equal(t, cloudsync.KeepRemote, res)
	})

	t.Run("cancel", func(t *testing.T) {
		m, _ := press(pickerModel{}, down, tea.KeyMsg{Type: tea.KeyEsc})
		_, err := m.(pickerModel).selection()
		assert.Error(t, err)
	})

	t.Run("view marks the cursor", func(t *testing.T) {
		m, _ := press(pickerModel{}, down)
		assert.Contains(t, m.View(), "> Keep remote")
	})
}

func TestLoginModelFocus(t *testing.T) {
	m := newLoginModel(&LoginTUIOpts{ServerURL: "https://dav.example.com/dav/"})
	assert.Equal(t, fieldUsername, m.focus)

	m = newLoginModel(&LoginTUIOpts{ServerURL: "https://dav.example.com/dav/", Username: "alice"})
	assert.Equal(t, fieldPassword, m.focus)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, fieldServer, next.(loginModel).focus)

	prev, _ := next.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, fieldPassword, prev.(loginModel).focus)
}

func TestLoginModelSubmit(t *testing.T) {
	var got []string
	opts := &LoginTUIOpts{
		ServerURL: "https://dav.example.com/dav/",
		Username:  "alice",
		Submit: func(server, username, password string) error {
			got = []string{server, username, password}
			return nil
		},
	}

	var m tea.Model = newLoginModel(opts)

	// an empty password is rejected without calling Submit
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, txtMissing, m.(loginModel).errorMessage)
	assert.Nil(t, got)

	m, _ = press(m, typed("s3cret"))
	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.(loginModel).isLoading)
	assert.Empty(t, m.(loginModel).errorMessage)
	assert.Contains(t, m.View(), txtTesting)

	msg := cmd()
	assert.Equal(t, []string{"https://dav.example.com/dav/", "alice", "s3cret"}, got)

	m, _ = m.Update(msg)
	assert.True(t, m.(loginModel).done)
	assert.False(t, m.(loginModel).isLoading)
}

func TestLoginModelSubmitError(t *testing.T) {
	opts := &LoginTUIOpts{
		ServerURL: "https://dav.example.com/dav/",
		Username:  "alice",
		Submit: func(string, string, string) error {
			return errors.New("401 unauthorized")
		},
	}

	var m tea.Model = newLoginModel(opts)
	m, _ = press(m, typed("wrong"))
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m, _ = m.Update(cmd())
	lm := m.(loginModel)
	assert.False(t, lm.done)
	assert.False(t, lm.isLoading)
	assert.Contains(t, lm.errorMessage, "401 unauthorized")
	assert.Contains(t, m.View(), "401 unauthorized")
}

func TestLoginModelCancel(t *testing.T) {
	var m tea.Model = newLoginModel(&LoginTUIOpts{})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.(loginModel).cancelled)
	assert.False(t, m.(loginModel).done)
}

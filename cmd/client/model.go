package main

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okvist/parley/internal/syncer"
	"github.com/okvist/parley/internal/user"
)

type appState int

const (
	stateLogin appState = iota
	stateChat
)

type rootModel struct {
	gateway *syncer.Gateway
	poller  *syncer.Poller
	state     appState
	login     loginModel
	chat      chatModel
	restoring bool
	width     int
	height    int

	// newGateway rebuilds the gateway once the login form names the server.
	newGateway func(serverURL string) (*syncer.Gateway, *syncer.Poller)
}

type sessionSuccessMsg struct {
	user user.User
}

type sessionErrorMsg struct {
	err error
}

func newRootModel(defaultServer string, newGateway func(string) (*syncer.Gateway, *syncer.Poller)) rootModel {
	m := rootModel{
		state:      stateLogin,
		login:      newLoginModel(defaultServer),
		newGateway: newGateway,
	}
	if session, ok := loadSession(); ok && session.canRestore() && m.login.validateSubmit() == "" {
		m.gateway, m.poller = newGateway(strings.TrimSpace(m.login.serverURL()))
		m.restoring = true
		m.login.loading = true
	}
	return m
}

// Init signs a restored session back in without touching the form. Sign-in
// goes through the normal register call, which reuses the account online and
// never fails offline; only a rejection drops back to the login screen.
func (m rootModel) Init() tea.Cmd {
	if m.restoring {
		return tea.Batch(m.login.Init(), m.doSignIn(m.login.username(), m.login.email()))
	}
	return m.login.Init()
}

func (m rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = wsm.Width
		m.height = wsm.Height
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+q" {
		return m, tea.Quit
	}

	if success, ok := msg.(sessionSuccessMsg); ok {
		serverURL := strings.TrimSpace(m.login.serverURL())
		if serverURL != "" {
			m.login.serverHistory = updateServerHistory(m.login.serverHistory, serverURL, 8)
			_ = saveServerHistory(m.login.serverHistory)
		}
		_ = saveSession(storedSession{
			Server:   serverURL,
			Username: success.user.Username,
			Email:    success.user.Email,
			User:     success.user,
		})
		m.restoring = false
		m.state = stateChat
		m.chat = newChatModel(m.gateway, m.poller, success.user, m.width, m.height)
		return m, m.chat.Init()
	}

	switch m.state {
	case stateLogin:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		if m.login.submitting {
			m.login.submitting = false
			m.gateway, m.poller = m.newGateway(strings.TrimSpace(m.login.serverURL()))
			return m, tea.Batch(cmd, m.doSignIn(m.login.username(), m.login.email()))
		}
		return m, cmd

	case stateChat:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m rootModel) View() string {
	switch m.state {
	case stateLogin:
		return m.login.View()
	case stateChat:
		return m.chat.View()
	}
	return ""
}

func (m rootModel) doSignIn(username, email string) tea.Cmd {
	gateway := m.gateway
	return func() tea.Msg {
		u, err := gateway.RegisterUser(context.Background(),
			strings.TrimSpace(username), strings.TrimSpace(email))
		if err != nil {
			return sessionErrorMsg{err: err}
		}
		return sessionSuccessMsg{user: u}
	}
}

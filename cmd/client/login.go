package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type loginModel struct {
	serverInput   textinput.Model
	usernameInput textinput.Model
	emailInput    textinput.Model
	focusIdx      int
	submitting    bool
	errMsg        string
	loading       bool
	width         int
	height        int
	serverHistory []string
	selectActive  bool
	selectIndex   int
}

const (
	minUsernameLen = 2
	maxUsernameLen = 32
)

func newLoginModel(defaultServer string) loginModel {
	server := textinput.New()
	server.Placeholder = "http://localhost:8080"
	server.CharLimit = 256
	server.Width = 40
	serverHistory := loadServerHistory()
	session, hasSession := loadSession()
	switch {
	case strings.TrimSpace(defaultServer) != "":
		server.SetValue(strings.TrimSpace(defaultServer))
	case hasSession && session.Server != "":
		server.SetValue(session.Server)
	case len(serverHistory) > 0:
		server.SetValue(serverHistory[0])
	}
	server.Focus()

	username := textinput.New()
	username.Placeholder = "display name"
	username.CharLimit = maxUsernameLen
	username.Width = 40

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 256
	email.Width = 40

	if hasSession {
		username.SetValue(session.Username)
		email.SetValue(session.Email)
	}

	return loginModel{
		serverInput:   server,
		usernameInput: username,
		emailInput:    email,
		serverHistory: serverHistory,
	}
}

func (m loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m loginModel) serverURL() string { return m.serverInput.Value() }
func (m loginModel) username() string  { return m.usernameInput.Value() }
func (m loginModel) email() string     { return m.emailInput.Value() }

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionErrorMsg:
		m.loading = false
		m.errMsg = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		m.errMsg = ""
		if m.selectActive {
			m.handleServerSelectKey(msg)
			return m, nil
		}

		switch msg.String() {
		case "tab", "shift+tab", "down", "up":
			dir := 1
			if msg.String() == "up" || msg.String() == "shift+tab" {
				dir = -1
			}
			m.moveFocus(dir)
			return m, nil

		case "ctrl+s":
			if len(m.serverHistory) == 0 {
				m.errMsg = "no saved servers yet"
				return m, nil
			}
			m.selectActive = true
			m.selectIndex = 0
			return m, nil

		case "enter":
			if m.loading {
				return m, nil
			}
			if errMsg := m.validateSubmit(); errMsg != "" {
				m.errMsg = errMsg
				return m, nil
			}
			m.loading = true
			m.submitting = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focusIdx {
	case 0:
		m.serverInput, cmd = m.serverInput.Update(msg)
	case 1:
		m.usernameInput, cmd = m.usernameInput.Update(msg)
	case 2:
		m.emailInput, cmd = m.emailInput.Update(msg)
	default:
		m.serverInput, cmd = m.serverInput.Update(msg)
	}
	return m, cmd
}

func (m *loginModel) handleServerSelectKey(msg tea.KeyMsg) {
	if len(m.serverHistory) == 0 {
		m.selectActive = false
		return
	}
	switch msg.String() {
	case "up", "k":
		if m.selectIndex > 0 {
			m.selectIndex--
		}
	case "down", "j":
		if m.selectIndex < len(m.serverHistory)-1 {
			m.selectIndex++
		}
	case "enter":
		m.serverInput.SetValue(m.serverHistory[m.selectIndex])
		m.selectActive = false
	case "esc":
		m.selectActive = false
	}
}

func (m *loginModel) moveFocus(dir int) {
	m.focusIdx = (m.focusIdx + dir + 3) % 3
	m.applyFocus()
}

func (m *loginModel) applyFocus() {
	m.serverInput.Blur()
	m.usernameInput.Blur()
	m.emailInput.Blur()

	switch m.focusIdx {
	case 1:
		m.usernameInput.Focus()
	case 2:
		m.emailInput.Focus()
	default:
		m.serverInput.Focus()
	}
}

func (m loginModel) View() string {
	var b strings.Builder

	topPad := 0
	if m.height > 13 {
		topPad = (m.height - 13) / 3
	}
	b.WriteString(strings.Repeat("\n", topPad))

	b.WriteString(centerText(appNameStyle.Render("*  parley"), m.width))
	b.WriteString("\n")
	b.WriteString(centerText(subtitleStyle.Render("messaging that works offline"), m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText(headerStyle.Render("[ Sign in ]"), m.width))
	b.WriteString("\n\n")

	labels := []string{"Server", "Name", "Email"}
	inputs := []textinput.Model{m.serverInput, m.usernameInput, m.emailInput}
	maxLabel := 0
	for _, label := range labels {
		if len(label) > maxLabel {
			maxLabel = len(label)
		}
	}
	for i, input := range inputs {
		line := labelStyle.Render(fmt.Sprintf("  %-*s: ", maxLabel, labels[i])) + input.View()
		b.WriteString(centerText(line, m.width))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.selectActive {
		b.WriteString(centerText(labelStyle.Render("Select server"), m.width))
		b.WriteString("\n")
		for i, server := range m.serverHistory {
			prefix := "  "
			if i == m.selectIndex {
				prefix = "> "
			}
			line := prefix + trimLine(server, clampMin(m.width-6, 20))
			b.WriteString(centerText(labelStyle.Render(line), m.width))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString(centerText(errorStyle.Render("  x "+m.errMsg), m.width))
		b.WriteString("\n\n")
	}

	if m.loading {
		b.WriteString(centerText(labelStyle.Render("  signing in..."), m.width))
		b.WriteString("\n\n")
	}

	b.WriteString(centerText(helpStyle.Render("up/down or tab: switch field - ctrl+s: servers - enter: sign in - ctrl+q: quit"), m.width))

	return b.String()
}

func (m loginModel) validateSubmit() string {
	if strings.TrimSpace(m.serverURL()) == "" {
		return "server url is required"
	}
	username := strings.TrimSpace(m.username())
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return fmt.Sprintf("name must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	email := strings.TrimSpace(m.email())
	if email == "" || !strings.Contains(email, "@") {
		return "a valid email is required"
	}
	return ""
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/syncer"
	"github.com/okvist/parley/internal/user"
)

const sidebarWidth = 26

// conversationOption is one row in the conversation selector: a peer or a
// group.
type conversationOption struct {
	label        string
	conversation syncer.Conversation
}

type chatModel struct {
	gateway *syncer.Gateway
	poller  *syncer.Poller
	me      user.User

	users    []user.User
	groups   []group.Group
	messages []message.Message
	names    map[string]string

	active         syncer.Conversation
	activeLabel    string
	sidebarVisible bool
	selectActive   bool
	selectOptions  []conversationOption
	selectIndex    int

	viewport viewport.Model
	input    textinput.Model
	online   bool
	errMsg   string
	width    int
	height   int
}

type pollTickMsg struct{}

type snapshotMsg struct {
	snap syncer.Snapshot
}

type messageSentMsg struct {
	message message.Message
	remote  bool
	err     error
}

func newChatModel(gateway *syncer.Gateway, poller *syncer.Poller, me user.User, width, height int) chatModel {
	input := textinput.New()
	input.Placeholder = "type a message..."
	input.CharLimit = 4096
	input.Width = clampMin(width-8, 20)
	input.Focus()

	vpHeight := clampMin(height-7, 1)
	vpWidth := clampMin(width-4, 10)
	vp := viewport.New(vpWidth, vpHeight)

	poller.SetSession(string(me.ID), me.IsAdmin)

	return chatModel{
		gateway:        gateway,
		poller:         poller,
		me:             me,
		names:          make(map[string]string),
		sidebarVisible: true,
		viewport:       vp,
		input:          input,
		online:         true,
		width:          width,
		height:         height,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.pollCmd())
}

// pollCmd runs one synchronous poll cycle off the UI goroutine. The next
// cycle is armed only once the snapshot has been applied, so a slow server
// never stacks requests.
func (m chatModel) pollCmd() tea.Cmd {
	poller := m.poller
	return func() tea.Msg {
		return snapshotMsg{snap: poller.Tick(context.Background())}
	}
}

func scheduleNextPoll() tea.Cmd {
	return tea.Tick(syncer.PollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.refreshViewport()
		return m, nil

	case pollTickMsg:
		return m, m.pollCmd()

	case snapshotMsg:
		m.applySnapshot(msg.snap)
		return m, tea.Batch(scheduleNextPoll(), m.markReadCmd())

	case messageSentMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.messages = append(m.messages, msg.message)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		m.errMsg = ""
		if m.selectActive {
			m.handleSelectKey(msg)
			return m, nil
		}
		switch msg.String() {
		case "enter":
			return m, m.sendCurrentMessage()

		case "ctrl+u":
			m.sidebarVisible = !m.sidebarVisible
			m.updateLayout()
			m.refreshViewport()
			return m, nil

		case "ctrl+s":
			m.openSelect()
			return m, nil

		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil

		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) applySnapshot(snap syncer.Snapshot) {
	m.online = snap.Online
	m.users = snap.Users
	m.groups = snap.Groups
	for _, u := range snap.Users {
		m.names[string(u.ID)] = u.Username
	}
	if !m.active.IsZero() {
		m.messages = snap.Messages
	}
	m.refreshViewport()
}

// markReadCmd acknowledges unread incoming messages in the open direct
// conversation. Best effort: a failure just means the next tick retries.
func (m chatModel) markReadCmd() tea.Cmd {
	if m.active.PeerID == "" {
		return nil
	}
	var unread []string
	for _, msg := range m.messages {
		if msg.ReceiverID == string(m.me.ID) && msg.Status != message.StatusRead {
			unread = append(unread, string(msg.ID))
		}
	}
	if len(unread) == 0 {
		return nil
	}
	gateway := m.gateway
	return func() tea.Msg {
		ctx := context.Background()
		for _, id := range unread {
			_ = gateway.UpdateMessageStatus(ctx, id, message.StatusRead)
		}
		return nil
	}
}

func (m *chatModel) sendCurrentMessage() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if m.active.IsZero() {
		m.errMsg = "pick a conversation first (ctrl+s)"
		return nil
	}
	m.input.SetValue("")

	out := message.Message{
		SenderID: string(m.me.ID),
		Type:     message.TypeText,
		Text:     text,
	}
	if m.active.GroupID != "" {
		out.ReceiverID = m.active.GroupID
		out.GroupID = m.active.GroupID
	} else {
		out.ReceiverID = m.active.PeerID
	}

	gateway := m.gateway
	return func() tea.Msg {
		sent, remote, err := gateway.SendMessage(context.Background(), out)
		return messageSentMsg{message: sent, remote: remote, err: err}
	}
}

func (m *chatModel) openSelect() {
	options := make([]conversationOption, 0, len(m.users)+len(m.groups))
	for _, u := range m.users {
		if u.ID == m.me.ID {
			continue
		}
		options = append(options, conversationOption{
			label:        u.Username,
			conversation: syncer.Conversation{PeerID: string(u.ID)},
		})
	}
	for _, g := range m.groups {
		options = append(options, conversationOption{
			label:        "# " + g.Name,
			conversation: syncer.Conversation{GroupID: string(g.ID)},
		})
	}
	if len(options) == 0 {
		m.errMsg = "nobody to talk to yet"
		return
	}
	m.selectOptions = options
	m.selectActive = true
	m.selectIndex = 0
}

func (m *chatModel) handleSelectKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "up", "k":
		if m.selectIndex > 0 {
			m.selectIndex--
		}
	case "down", "j":
		if m.selectIndex < len(m.selectOptions)-1 {
			m.selectIndex++
		}
	case "enter":
		option := m.selectOptions[m.selectIndex]
		m.active = option.conversation
		m.activeLabel = option.label
		m.messages = nil
		m.poller.SetConversation(option.conversation)
		m.selectActive = false
		m.refreshViewport()
	case "esc":
		m.selectActive = false
	}
}

func (m *chatModel) updateLayout() {
	contentWidth := m.width
	if m.sidebarVisible {
		contentWidth = clampMin(m.width-sidebarWidth-2, 10)
	}
	m.viewport.Width = clampMin(contentWidth-4, 10)
	m.viewport.Height = clampMin(m.height-7, 1)
	m.input.Width = clampMin(contentWidth-8, 20)
}

func (m *chatModel) refreshViewport() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m chatModel) senderName(id string) string {
	if id == string(m.me.ID) {
		return m.me.Username
	}
	if name, ok := m.names[id]; ok {
		return name
	}
	return trimLine(id, 8)
}

func statusGlyph(s message.Status) string {
	switch s {
	case message.StatusRead:
		return "✓✓"
	case message.StatusDelivered:
		return "✓·"
	default:
		return "✓"
	}
}

func (m chatModel) renderMessages() string {
	if m.active.IsZero() {
		return helpStyle.Render("ctrl+s to pick a conversation")
	}
	var b strings.Builder
	for _, msg := range m.messages {
		sentAt := time.UnixMilli(msg.Timestamp).Local().Format("15:04")
		mine := msg.SenderID == string(m.me.ID)
		line := fmt.Sprintf("[%s] %s: %s", sentAt, m.senderName(msg.SenderID), msg.Text)
		switch {
		case mine && msg.Status == message.StatusSent && !m.online:
			b.WriteString(pendingMsgStyle.Render(line + " (pending)"))
		case mine:
			b.WriteString(sentMsgStyle.Render(line + " " + statusGlyph(msg.Status)))
		default:
			b.WriteString(recvMsgStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m chatModel) renderSidebar() string {
	var b strings.Builder
	b.WriteString(sidebarTitleStyle.Render("People"))
	b.WriteString("\n")
	for _, u := range m.users {
		name := trimLine(u.Username, sidebarWidth-4)
		if u.ID == m.me.ID {
			name += " (you)"
		}
		b.WriteString(labelStyle.Render("  " + name))
		b.WriteString("\n")
	}
	if len(m.groups) > 0 {
		b.WriteString("\n")
		b.WriteString(sidebarTitleStyle.Render("Groups"))
		b.WriteString("\n")
		for _, g := range m.groups {
			b.WriteString(labelStyle.Render("  # " + trimLine(g.Name, sidebarWidth-6)))
			b.WriteString("\n")
		}
	}
	return sidebarBoxStyle.Width(sidebarWidth).Render(b.String())
}

func (m chatModel) View() string {
	var b strings.Builder

	status := onlineStyle.Render("online")
	if !m.online {
		status = offlineStyle.Render("offline - messages will be kept locally")
	}
	title := m.activeLabel
	if title == "" {
		title = "no conversation"
	}
	b.WriteString("  " + appNameStyle.Render("parley") + "  " +
		headerStyle.Render(title) + "  " + status)
	b.WriteString("\n")
	b.WriteString(separator(m.width))
	b.WriteString("\n")

	main := m.viewport.View()
	if m.sidebarVisible {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, m.renderSidebar())
	}
	b.WriteString(main)
	b.WriteString("\n")
	b.WriteString(separator(m.width))
	b.WriteString("\n")

	if m.selectActive {
		b.WriteString(labelStyle.Render("  Open conversation"))
		b.WriteString("\n")
		for i, option := range m.selectOptions {
			prefix := "    "
			if i == m.selectIndex {
				prefix = "  > "
			}
			b.WriteString(labelStyle.Render(prefix + trimLine(option.label, clampMin(m.width-8, 16))))
			b.WriteString("\n")
		}
	} else {
		b.WriteString("  " + m.input.View())
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("  x " + m.errMsg))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  enter: send - ctrl+s: conversations - ctrl+u: sidebar - pgup/pgdn: scroll - ctrl+q: quit"))

	return b.String()
}

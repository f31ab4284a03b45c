package main

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okvist/parley/internal/localstore"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/syncer"
	"github.com/okvist/parley/internal/user"
)

func newBareChat(t *testing.T) chatModel {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "fallback.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })
	gateway := syncer.NewGateway(syncer.NewRemote("http://127.0.0.1:0"), local)
	return newChatModel(gateway, syncer.NewPoller(gateway), user.User{ID: "me", Username: "Me"}, 80, 24)
}

func TestStatusGlyph(t *testing.T) {
	if statusGlyph(message.StatusSent) != "✓" {
		t.Fatal("sent glyph")
	}
	if statusGlyph(message.StatusDelivered) != "✓·" {
		t.Fatal("delivered glyph")
	}
	if statusGlyph(message.StatusRead) != "✓✓" {
		t.Fatal("read glyph")
	}
}

func TestSenderName(t *testing.T) {
	m := newBareChat(t)
	m.names["u-1"] = "Alice"

	if got := m.senderName("me"); got != "Me" {
		t.Fatalf("senderName(me) = %q", got)
	}
	if got := m.senderName("u-1"); got != "Alice" {
		t.Fatalf("senderName(u-1) = %q", got)
	}
	if got := m.senderName("someone-unknown"); got != "someo..." {
		t.Fatalf("senderName(unknown) = %q", got)
	}
}

func TestHandleSelectKey_PicksConversation(t *testing.T) {
	m := newBareChat(t)
	m.selectActive = true
	m.selectOptions = []conversationOption{
		{label: "Alice", conversation: syncer.Conversation{PeerID: "u-1"}},
		{label: "# team", conversation: syncer.Conversation{GroupID: "g-1"}},
	}

	m.handleSelectKey(tea.KeyMsg{Type: tea.KeyDown})
	m.handleSelectKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.selectActive {
		t.Fatal("selector still open after enter")
	}
	if m.active.GroupID != "g-1" || m.activeLabel != "# team" {
		t.Fatalf("active = %+v label = %q", m.active, m.activeLabel)
	}
}

func TestHandleSelectKey_EscCloses(t *testing.T) {
	m := newBareChat(t)
	m.selectActive = true
	m.selectOptions = []conversationOption{
		{label: "Alice", conversation: syncer.Conversation{PeerID: "u-1"}},
	}

	m.handleSelectKey(tea.KeyMsg{Type: tea.KeyEsc})
	if m.selectActive {
		t.Fatal("selector still open after esc")
	}
	if !m.active.IsZero() {
		t.Fatalf("esc selected a conversation: %+v", m.active)
	}
}

func TestSendCurrentMessage_NeedsConversation(t *testing.T) {
	m := newBareChat(t)
	m.input.SetValue("hello")

	if cmd := m.sendCurrentMessage(); cmd != nil {
		t.Fatal("expected no send without an open conversation")
	}
	if m.errMsg == "" {
		t.Fatal("expected an error message")
	}
}

func TestSendCurrentMessage_EmptyInputIsNoOp(t *testing.T) {
	m := newBareChat(t)
	m.active = syncer.Conversation{PeerID: "u-1"}
	m.input.SetValue("   ")

	if cmd := m.sendCurrentMessage(); cmd != nil {
		t.Fatal("expected blank input to be dropped")
	}
}

func TestApplySnapshot_TracksOnlineAndNames(t *testing.T) {
	m := newBareChat(t)
	m.active = syncer.Conversation{PeerID: "u-1"}

	m.applySnapshot(syncer.Snapshot{
		Users:  []user.User{{ID: "u-1", Username: "Alice"}},
		Online: false,
		Messages: []message.Message{
			{ID: "m-1", SenderID: "u-1", ReceiverID: "me", Type: message.TypeText, Text: "hi", Timestamp: 100},
		},
	})
	if m.online {
		t.Fatal("expected offline state to carry over")
	}
	if m.names["u-1"] != "Alice" {
		t.Fatal("expected the roster to feed the name table")
	}
	if len(m.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(m.messages))
	}
}

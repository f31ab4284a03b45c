package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func newBareLogin(t *testing.T) loginModel {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return newLoginModel("")
}

func TestValidateSubmit(t *testing.T) {
	m := newBareLogin(t)

	if msg := m.validateSubmit(); !strings.Contains(msg, "server") {
		t.Fatalf("empty form error = %q, want a server complaint", msg)
	}

	m.serverInput.SetValue("http://localhost:8080")
	m.usernameInput.SetValue("A")
	if msg := m.validateSubmit(); !strings.Contains(msg, "name") {
		t.Fatalf("short name error = %q", msg)
	}

	m.usernameInput.SetValue("Alice")
	m.emailInput.SetValue("not-an-email")
	if msg := m.validateSubmit(); !strings.Contains(msg, "email") {
		t.Fatalf("bad email error = %q", msg)
	}

	m.emailInput.SetValue("alice@example.com")
	if msg := m.validateSubmit(); msg != "" {
		t.Fatalf("complete form error = %q, want none", msg)
	}
}

func TestMoveFocusWraps(t *testing.T) {
	m := newBareLogin(t)

	m.moveFocus(1)
	m.moveFocus(1)
	if m.focusIdx != 2 {
		t.Fatalf("focusIdx = %d, want 2", m.focusIdx)
	}
	m.moveFocus(1)
	if m.focusIdx != 0 {
		t.Fatalf("focusIdx = %d, want wrap to 0", m.focusIdx)
	}
	m.moveFocus(-1)
	if m.focusIdx != 2 {
		t.Fatalf("focusIdx = %d, want wrap to 2", m.focusIdx)
	}
}

func TestDefaultServerPrefill(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	m := newLoginModel("http://example:9000")
	if m.serverURL() != "http://example:9000" {
		t.Fatalf("serverURL() = %q", m.serverURL())
	}
}

func TestSessionPrefill(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_ = saveSession(storedSession{
		Server:   "http://saved:8080",
		Username: "Alice",
		Email:    "alice@example.com",
	})
	m := newLoginModel("")
	if m.serverURL() != "http://saved:8080" || m.username() != "Alice" || m.email() != "alice@example.com" {
		t.Fatalf("prefill = %q %q %q", m.serverURL(), m.username(), m.email())
	}
}

func TestEnterSetsSubmitting(t *testing.T) {
	m := newBareLogin(t)
	m.serverInput.SetValue("http://localhost:8080")
	m.usernameInput.SetValue("Alice")
	m.emailInput.SetValue("alice@example.com")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.submitting || !m.loading {
		t.Fatalf("submitting = %v loading = %v, want both true", m.submitting, m.loading)
	}
}

func TestEnterWithInvalidFormShowsError(t *testing.T) {
	m := newBareLogin(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.submitting {
		t.Fatal("invalid form must not submit")
	}
	if m.errMsg == "" {
		t.Fatal("expected a validation error message")
	}
}

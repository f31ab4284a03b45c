package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/okvist/parley/internal/user"
)

// storedSession remembers who signed in last so the next start can sign back
// in without the form, and a fully offline start can reuse the account.
type storedSession struct {
	Server   string    `json:"server"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	User     user.User `json:"user"`
}

// canRestore reports whether the session carries enough to sign in again
// unattended. Sessions written before the user was persisted only prefill.
func (s storedSession) canRestore() bool {
	return s.Server != "" && s.User.ID != "" && s.Username != "" && s.Email != ""
}

type serverHistory struct {
	Servers []string `json:"servers"`
}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley"), nil
}

func loadSession() (storedSession, bool) {
	dir, err := configDir()
	if err != nil {
		return storedSession{}, false
	}
	data, err := os.ReadFile(filepath.Join(dir, "session.json"))
	if err != nil {
		return storedSession{}, false
	}
	var session storedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return storedSession{}, false
	}
	return session, true
}

func saveSession(session storedSession) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "session.json"), data, 0o600)
}

func loadServerHistory() []string {
	dir, err := configDir()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(dir, "servers.json"))
	if err != nil {
		return nil
	}
	var stored serverHistory
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil
	}
	return filterServers(stored.Servers)
}

func saveServerHistory(servers []string) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(serverHistory{Servers: filterServers(servers)})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "servers.json"), data, 0o600)
}

func updateServerHistory(servers []string, server string, max int) []string {
	value := strings.TrimSpace(server)
	if value == "" {
		return filterServers(servers)
	}
	cleaned := make([]string, 0, len(servers)+1)
	cleaned = append(cleaned, value)
	for _, existing := range servers {
		if strings.EqualFold(existing, value) {
			continue
		}
		cleaned = append(cleaned, existing)
		if max > 0 && len(cleaned) >= max {
			break
		}
	}
	return filterServers(cleaned)
}

func filterServers(servers []string) []string {
	filtered := make([]string, 0, len(servers))
	seen := make(map[string]struct{}, len(servers))
	for _, server := range servers {
		value := strings.TrimSpace(server)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		filtered = append(filtered, value)
	}
	return filtered
}

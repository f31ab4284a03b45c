package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/okvist/parley/internal/admin"
	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

type memUserRepo struct {
	users map[user.ID]user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[user.ID]user.User)}
}

func (r *memUserRepo) Create(_ context.Context, u user.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id user.ID) (user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *memUserRepo) ListVisible(_ context.Context) ([]user.User, error) {
	out := make([]user.User, 0, len(r.users))
	for _, u := range r.users {
		if !u.IsAdmin && !u.IsBanned {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepo) ListAll(_ context.Context) ([]user.User, error) {
	out := make([]user.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id user.ID, update user.ProfileUpdate) error {
	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	if update.Username != nil {
		u.Username = *update.Username
	}
	if update.AvatarURL != nil {
		u.AvatarURL = *update.AvatarURL
	}
	if update.Status != nil {
		u.Status = *update.Status
	}
	r.users[id] = u
	return nil
}

func (r *memUserRepo) SetBanned(_ context.Context, id user.ID, banned bool) error {
	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.IsBanned = banned
	r.users[id] = u
	return nil
}

func (r *memUserRepo) SetLastSeen(_ context.Context, id user.ID, lastSeen int64) error {
	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.LastSeen = lastSeen
	r.users[id] = u
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id user.ID) error {
	if _, ok := r.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) DeleteNonAdmins(_ context.Context) (int64, error) {
	var n int64
	for id, u := range r.users {
		if !u.IsAdmin {
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}

type memMessageRepo struct {
	messages []message.Message
}

func (r *memMessageRepo) Create(_ context.Context, m message.Message) error {
	r.messages = append(r.messages, m)
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id message.ID) (message.Message, error) {
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return message.Message{}, message.ErrNotFound
}

func (r *memMessageRepo) GetByKey(_ context.Context, senderID, receiverID string, timestamp int64) (message.Message, error) {
	for _, m := range r.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && m.Timestamp == timestamp {
			return m, nil
		}
	}
	return message.Message{}, message.ErrNotFound
}

func (r *memMessageRepo) ListDirect(_ context.Context, a, b string, limit int) ([]message.Message, error) {
	var out []message.Message
	for _, m := range r.messages {
		if m.GroupID != "" {
			continue
		}
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessageRepo) ListGroup(_ context.Context, groupID string, limit int) ([]message.Message, error) {
	var out []message.Message
	for _, m := range r.messages {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessageRepo) UpdateStatus(_ context.Context, id message.ID, status message.Status) error {
	for i, m := range r.messages {
		if m.ID == id {
			r.messages[i].Status = status
			return nil
		}
	}
	return message.ErrNotFound
}

func (r *memMessageRepo) UpdateText(_ context.Context, id message.ID, text string) error {
	for i, m := range r.messages {
		if m.ID == id {
			r.messages[i].Text = text
			return nil
		}
	}
	return message.ErrNotFound
}

func (r *memMessageRepo) Delete(_ context.Context, id message.ID) error {
	for i, m := range r.messages {
		if m.ID == id {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return nil
		}
	}
	return message.ErrNotFound
}

func (r *memMessageRepo) DeleteForUser(_ context.Context, userID string) (int64, error) {
	var kept []message.Message
	var n int64
	for _, m := range r.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return n, nil
}

func (r *memMessageRepo) DeleteForGroup(_ context.Context, groupID string) (int64, error) {
	var kept []message.Message
	var n int64
	for _, m := range r.messages {
		if m.GroupID == groupID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return n, nil
}

func (r *memMessageRepo) DeleteAll(_ context.Context) (int64, error) {
	n := int64(len(r.messages))
	r.messages = nil
	return n, nil
}

type memGroupRepo struct {
	groups map[group.ID]group.Group
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: make(map[group.ID]group.Group)}
}

func (r *memGroupRepo) Create(_ context.Context, g group.Group) error {
	r.groups[g.ID] = g
	return nil
}

func (r *memGroupRepo) GetByID(_ context.Context, id group.ID) (group.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	return g, nil
}

func (r *memGroupRepo) ListForUser(_ context.Context, userID string) ([]group.Group, error) {
	var out []group.Group
	for _, g := range r.groups {
		if g.HasMember(userID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memGroupRepo) ListAll(_ context.Context) ([]group.Group, error) {
	out := make([]group.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out, nil
}

func (r *memGroupRepo) SetMembers(_ context.Context, id group.ID, memberIDs []string) error {
	g, ok := r.groups[id]
	if !ok {
		return group.ErrNotFound
	}
	g.MemberIDs = memberIDs
	r.groups[id] = g
	return nil
}

func (r *memGroupRepo) Delete(_ context.Context, id group.ID) error {
	if _, ok := r.groups[id]; !ok {
		return group.ErrNotFound
	}
	delete(r.groups, id)
	return nil
}

func (r *memGroupRepo) RemoveMemberFromAll(_ context.Context, userID string) (int64, error) {
	var n int64
	for id, g := range r.groups {
		if g.AdminID == userID || !g.HasMember(userID) {
			continue
		}
		kept := make([]string, 0, len(g.MemberIDs))
		for _, m := range g.MemberIDs {
			if m != userID {
				kept = append(kept, m)
			}
		}
		g.MemberIDs = kept
		r.groups[id] = g
		n++
	}
	return n, nil
}

func (r *memGroupRepo) DeleteAll(_ context.Context) (int64, error) {
	n := int64(len(r.groups))
	r.groups = make(map[group.ID]group.Group)
	return n, nil
}

type testEnv struct {
	server   *httptest.Server
	users    *memUserRepo
	messages *memMessageRepo
	groups   *memGroupRepo
}

func newTestEnv(t *testing.T, adminEmail string) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	messages := &memMessageRepo{}
	groups := newMemGroupRepo()

	userSvc := user.NewService(users, adminEmail)
	messageSvc := message.NewService(messages, userSvc, 0)
	groupSvc := group.NewService(groups, userSvc, messageSvc)
	adminSvc := admin.NewService(users, messages, groups)

	mux := http.NewServeMux()
	NewHandler(userSvc, messageSvc, groupSvc, adminSvc).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, users: users, messages: messages, groups: groups}
}

// doJSON sends a request and decodes the response body into out when out is
// non-nil, returning the status code.
func (e *testEnv) doJSON(t *testing.T, method, path string, payload, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) registerUser(t *testing.T, username, email string) userResponse {
	t.Helper()
	var u userResponse
	status := e.doJSON(t, http.MethodPost, "/users", map[string]string{
		"username": username,
		"email":    email,
	}, &u)
	if status != http.StatusCreated && status != http.StatusOK {
		t.Fatalf("register %s: status = %d", email, status)
	}
	return u
}

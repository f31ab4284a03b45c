package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/localstore"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

// Gateway is the single entry point the client uses to talk to the server.
// Every call goes to the remote API first; when the server is unreachable or
// faulting, the operations a user cannot wait on (registration, the roster,
// direct chat) are answered from the local fallback store instead. Group and
// admin operations have no offline story and surface the failure directly.
//
// Connectivity state is owned here: it flips only on observed outcomes, so
// one component decides "online" and everyone else reads it.
type Gateway struct {
	remote *Remote
	local  *localstore.Store
	clock  *Clock
	newID  func() string

	mu     sync.Mutex
	online bool
}

func NewGateway(remote *Remote, local *localstore.Store) *Gateway {
	return &Gateway{
		remote: remote,
		local:  local,
		clock:  NewClock(),
		newID:  uuid.NewString,
		online: true,
	}
}

// Online reports the connectivity state as of the last remote call.
func (g *Gateway) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

// observe records the connectivity implied by an outcome. A rejection is a
// live server saying no, so it counts as online.
func (g *Gateway) observe(outcome Outcome) {
	g.mu.Lock()
	g.online = !outcome.NetworkFailure()
	g.mu.Unlock()
}

// Ping probes the health endpoint without any side effect beyond updating
// the connectivity state.
func (g *Gateway) Ping(ctx context.Context) bool {
	outcome := g.remote.Health(ctx)
	g.observe(outcome)
	return outcome.OK()
}

// RegisterUser signs the user in. It never fails on a network failure: when
// the server cannot answer, a previously mirrored account with the same email
// is reused, and failing that a provisional local account is minted so the
// session can start offline. Only an explicit server rejection is an error.
func (g *Gateway) RegisterUser(ctx context.Context, username, email string) (user.User, error) {
	u, outcome := g.remote.RegisterUser(ctx, username, email)
	g.observe(outcome)
	switch {
	case outcome.OK():
		if err := g.local.SaveUser(ctx, u); err != nil {
			return u, fmt.Errorf("mirror user: %w", err)
		}
		return u, nil
	case outcome.Kind == OutcomeRejected:
		return user.User{}, outcome.Err()
	}

	cached, err := g.local.UserByEmail(ctx, email)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, localstore.ErrNotFound) {
		return user.User{}, fmt.Errorf("read fallback user: %w", err)
	}

	now := time.Now()
	provisional := user.User{
		ID:        user.ID(g.newID()),
		Username:  username,
		Email:     email,
		Status:    "offline",
		LastSeen:  now.UnixMilli(),
		CreatedAt: now,
	}
	if err := g.local.SaveUser(ctx, provisional); err != nil {
		return user.User{}, fmt.Errorf("save provisional user: %w", err)
	}
	return provisional, nil
}

// ListUsers returns the visible roster, from the server when it answers and
// from the local mirror when it does not.
func (g *Gateway) ListUsers(ctx context.Context) ([]user.User, error) {
	users, outcome := g.remote.ListUsers(ctx)
	g.observe(outcome)
	switch {
	case outcome.OK():
		for _, u := range users {
			if err := g.local.SaveUser(ctx, u); err != nil {
				return users, fmt.Errorf("mirror user: %w", err)
			}
		}
		return users, nil
	case outcome.Kind == OutcomeRejected:
		return []user.User{}, outcome.Err()
	}
	cached, err := g.local.Users(ctx)
	if err != nil {
		return []user.User{}, fmt.Errorf("read fallback users: %w", err)
	}
	return cached, nil
}

// SendMessage persists a message. Missing id, timestamp and status are filled
// in here so callers only set the payload. The returned bool reports whether
// the server accepted the message; false with a nil error means it was stored
// locally to be read back while offline.
func (g *Gateway) SendMessage(ctx context.Context, m message.Message) (message.Message, bool, error) {
	if m.ID == "" {
		m.ID = message.ID(g.newID())
	}
	if m.Timestamp == 0 {
		m.Timestamp = g.clock.Now()
	}
	if m.Status == "" {
		m.Status = message.StatusSent
	}

	outcome := g.remote.SendMessage(ctx, m)
	g.observe(outcome)
	switch {
	case outcome.OK():
		if m.GroupID == "" {
			if err := g.local.SaveMessage(ctx, m); err != nil {
				return m, true, fmt.Errorf("mirror message: %w", err)
			}
		}
		return m, true, nil
	case outcome.Kind == OutcomeRejected:
		return message.Message{}, false, outcome.Err()
	}

	if m.GroupID != "" {
		return message.Message{}, false, outcome.Err()
	}
	if err := g.local.SaveMessage(ctx, m); err != nil {
		return message.Message{}, false, fmt.Errorf("save fallback message: %w", err)
	}
	return m, false, nil
}

// ListDirectMessages returns the conversation between two users in timestamp
// order, falling back to the locally mirrored copy when the server cannot
// answer.
func (g *Gateway) ListDirectMessages(ctx context.Context, a, b string) ([]message.Message, error) {
	msgs, outcome := g.remote.ListDirectMessages(ctx, a, b)
	g.observe(outcome)
	switch {
	case outcome.OK():
		for _, m := range msgs {
			if err := g.local.SaveMessage(ctx, m); err != nil {
				return msgs, fmt.Errorf("mirror message: %w", err)
			}
		}
		return msgs, nil
	case outcome.Kind == OutcomeRejected:
		return []message.Message{}, outcome.Err()
	}
	cached, err := g.local.DirectMessages(ctx, a, b)
	if err != nil {
		return []message.Message{}, fmt.Errorf("read fallback messages: %w", err)
	}
	return cached, nil
}

// ListGroupMessages has no offline fallback; a failure yields an empty,
// non-nil slice and the classified error.
func (g *Gateway) ListGroupMessages(ctx context.Context, groupID string) ([]message.Message, error) {
	msgs, outcome := g.remote.ListGroupMessages(ctx, groupID)
	g.observe(outcome)
	if !outcome.OK() {
		return []message.Message{}, outcome.Err()
	}
	return msgs, nil
}

func (g *Gateway) UpdateMessageStatus(ctx context.Context, id string, status message.Status) error {
	outcome := g.remote.UpdateMessageStatus(ctx, id, status)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) EditMessage(ctx context.Context, actorID, id, text string) error {
	outcome := g.remote.EditMessage(ctx, actorID, id, text)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) DeleteMessage(ctx context.Context, actorID, id string) error {
	outcome := g.remote.DeleteMessage(ctx, actorID, id)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) UpdateUser(ctx context.Context, id string, update ProfileUpdate) (user.User, error) {
	u, outcome := g.remote.UpdateUser(ctx, id, update)
	g.observe(outcome)
	if !outcome.OK() {
		return user.User{}, outcome.Err()
	}
	if err := g.local.SaveUser(ctx, u); err != nil {
		return u, fmt.Errorf("mirror user: %w", err)
	}
	return u, nil
}

func (g *Gateway) SoftBanUser(ctx context.Context, id string) error {
	outcome := g.remote.SoftBanUser(ctx, id)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) BanUser(ctx context.Context, adminID, id string) error {
	outcome := g.remote.BanUser(ctx, adminID, id)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) PermanentDeleteUser(ctx context.Context, adminID, id string) error {
	outcome := g.remote.PermanentDeleteUser(ctx, adminID, id)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) Cleanup(ctx context.Context, adminID string) (CleanupCounts, error) {
	counts, outcome := g.remote.Cleanup(ctx, adminID)
	g.observe(outcome)
	if !outcome.OK() {
		return CleanupCounts{}, outcome.Err()
	}
	return counts, nil
}

func (g *Gateway) ListUsersForAdmin(ctx context.Context, adminID string) ([]user.User, error) {
	users, outcome := g.remote.ListUsersForAdmin(ctx, adminID)
	g.observe(outcome)
	if !outcome.OK() {
		return []user.User{}, outcome.Err()
	}
	return users, nil
}

func (g *Gateway) CreateGroup(ctx context.Context, name, avatarURL, adminID string, memberIDs []string) (group.Group, error) {
	grp, outcome := g.remote.CreateGroup(ctx, name, avatarURL, adminID, memberIDs)
	g.observe(outcome)
	if !outcome.OK() {
		return group.Group{}, outcome.Err()
	}
	return grp, nil
}

// ListGroupsForUser has no offline fallback; a failure yields an empty,
// non-nil slice and the classified error.
func (g *Gateway) ListGroupsForUser(ctx context.Context, userID string) ([]group.Group, error) {
	groups, outcome := g.remote.ListGroupsForUser(ctx, userID)
	g.observe(outcome)
	if !outcome.OK() {
		return []group.Group{}, outcome.Err()
	}
	return groups, nil
}

func (g *Gateway) ListAllGroupsForAdmin(ctx context.Context, adminID string) ([]group.Group, error) {
	groups, outcome := g.remote.ListAllGroupsForAdmin(ctx, adminID)
	g.observe(outcome)
	if !outcome.OK() {
		return []group.Group{}, outcome.Err()
	}
	return groups, nil
}

func (g *Gateway) DeleteGroup(ctx context.Context, actorID, id string) error {
	outcome := g.remote.DeleteGroup(ctx, actorID, id)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) AddGroupMember(ctx context.Context, actorID, id, memberID string) error {
	outcome := g.remote.AddGroupMember(ctx, actorID, id, memberID)
	g.observe(outcome)
	return outcome.Err()
}

func (g *Gateway) RemoveGroupMember(ctx context.Context, actorID, id, memberID string) error {
	outcome := g.remote.RemoveGroupMember(ctx, actorID, id, memberID)
	g.observe(outcome)
	return outcome.Err()
}

package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

// PollInterval is the cadence at which the client refreshes its view of the
// server. The next tick is armed only after the previous one finishes, so a
// slow server stretches the cycle instead of stacking requests.
const PollInterval = 2 * time.Second

// Conversation names what the user is currently looking at. Exactly one of
// PeerID or GroupID is set; the zero value means no conversation is open.
type Conversation struct {
	PeerID  string
	GroupID string
}

func (c Conversation) IsZero() bool {
	return c.PeerID == "" && c.GroupID == ""
}

// Snapshot is the result of one poll cycle: everything the UI needs to
// redraw, taken together so the screen never mixes data from two cycles.
type Snapshot struct {
	Users    []user.User
	Groups   []group.Group
	Messages []message.Message
	Online   bool
}

// Poller periodically pulls the roster, the session user's groups and the
// open conversation through the gateway. Session and conversation can change
// between ticks; reads and writes are serialized with a mutex because ticks
// run on their own goroutine under Run.
type Poller struct {
	gateway *Gateway

	mu           sync.Mutex
	userID       string
	isAdmin      bool
	conversation Conversation
}

func NewPoller(gateway *Gateway) *Poller {
	return &Poller{gateway: gateway}
}

// SetSession sets the signed-in user whose roster and groups each tick
// fetches. Admin sessions poll the unfiltered roster. An empty id turns
// ticks into pure health probes.
func (p *Poller) SetSession(userID string, isAdmin bool) {
	p.mu.Lock()
	p.userID = userID
	p.isAdmin = isAdmin
	p.mu.Unlock()
}

// SetConversation switches which conversation's messages each tick fetches.
func (p *Poller) SetConversation(c Conversation) {
	p.mu.Lock()
	p.conversation = c
	p.mu.Unlock()
}

// Tick performs one synchronous poll cycle and returns what it saw. Slices
// in the snapshot are never nil.
func (p *Poller) Tick(ctx context.Context) Snapshot {
	p.mu.Lock()
	userID := p.userID
	isAdmin := p.isAdmin
	conversation := p.conversation
	p.mu.Unlock()

	snap := Snapshot{
		Users:    []user.User{},
		Groups:   []group.Group{},
		Messages: []message.Message{},
	}

	if userID == "" {
		p.gateway.Ping(ctx)
		snap.Online = p.gateway.Online()
		return snap
	}

	snap.Users = p.fetchUsers(ctx, userID, isAdmin)
	if groups, err := p.gateway.ListGroupsForUser(ctx, userID); err == nil {
		snap.Groups = groups
	}
	switch {
	case conversation.GroupID != "":
		if msgs, err := p.gateway.ListGroupMessages(ctx, conversation.GroupID); err == nil {
			snap.Messages = msgs
		}
	case conversation.PeerID != "":
		if msgs, err := p.gateway.ListDirectMessages(ctx, userID, conversation.PeerID); err == nil {
			snap.Messages = msgs
		}
	}

	snap.Online = p.gateway.Online()
	return snap
}

// fetchUsers picks the roster variant for the session: admins get the
// unfiltered listing. The admin listing has no offline path, so on failure
// the tick drops to the standard listing and its local mirror.
func (p *Poller) fetchUsers(ctx context.Context, userID string, isAdmin bool) []user.User {
	if isAdmin {
		if users, err := p.gateway.ListUsersForAdmin(ctx, userID); err == nil {
			return users
		}
	}
	if users, err := p.gateway.ListUsers(ctx); err == nil {
		return users
	}
	return []user.User{}
}

// Run ticks until ctx is cancelled, delivering each snapshot to fn. The
// timer is re-armed after fn returns, so ticks never overlap.
func (p *Poller) Run(ctx context.Context, fn func(Snapshot)) {
	timer := time.NewTimer(PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			fn(p.Tick(ctx))
			timer.Reset(PollInterval)
		}
	}
}

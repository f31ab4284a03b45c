package group

import (
	"context"
	"time"
)

type ID string

// Group is an admin-owned conversation. AdminID is always a member and can
// only leave by deleting the group.
type Group struct {
	ID        ID
	Name      string
	AvatarURL string
	AdminID   string
	MemberIDs []string
	CreatedAt time.Time
}

func (g Group) HasMember(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Repository interface {
	Create(ctx context.Context, g Group) error
	GetByID(ctx context.Context, id ID) (Group, error)
	ListForUser(ctx context.Context, userID string) ([]Group, error)
	ListAll(ctx context.Context) ([]Group, error)
	SetMembers(ctx context.Context, id ID, memberIDs []string) error
	Delete(ctx context.Context, id ID) error
	RemoveMemberFromAll(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

package user

import (
	"context"
	"time"
)

type ID string

type User struct {
	ID        ID
	Username  string
	Email     string
	AvatarURL string
	Status    string
	LastSeen  int64
	IsAdmin   bool
	IsBanned  bool
	CreatedAt time.Time
}

// ProfileUpdate carries the mutable profile fields. A nil field is left
// untouched by the store.
type ProfileUpdate struct {
	Username  *string
	AvatarURL *string
	Status    *string
}

func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.AvatarURL == nil && p.Status == nil
}

type Repository interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id ID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ListVisible(ctx context.Context) ([]User, error)
	ListAll(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, id ID, update ProfileUpdate) error
	SetBanned(ctx context.Context, id ID, banned bool) error
	SetLastSeen(ctx context.Context, id ID, lastSeen int64) error
	Delete(ctx context.Context, id ID) error
	DeleteNonAdmins(ctx context.Context) (int64, error)
}

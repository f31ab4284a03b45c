package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("user not found")
)

type Service struct {
	repo       Repository
	adminEmail string
	idGen      func() ID
	now        func() time.Time
}

// NewService wires a user service over a repository. A user registering with
// adminEmail is created with the admin role; the role is stored and checked at
// write time, never compared against the email again.
func NewService(repo Repository, adminEmail string) *Service {
	return &Service{
		repo:       repo,
		adminEmail: normalizeEmail(adminEmail),
		idGen: func() ID {
			return ID(uuid.NewString())
		},
		now: time.Now,
	}
}

// RegisterOrFetch returns the existing user for email, or creates one. The
// second return reports whether a new user was created.
func (s *Service) RegisterOrFetch(ctx context.Context, username, email string) (User, bool, error) {
	if s.repo == nil {
		return User{}, false, errors.New("repository is required")
	}

	name := strings.TrimSpace(username)
	addr := normalizeEmail(email)
	if name == "" || addr == "" {
		return User{}, false, ErrInvalidInput
	}

	existing, err := s.repo.GetByEmail(ctx, addr)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, fmt.Errorf("lookup user by email: %w", err)
	}

	u := User{
		ID:        s.idGen(),
		Username:  name,
		Email:     addr,
		LastSeen:  s.now().UnixMilli(),
		IsAdmin:   s.adminEmail != "" && addr == s.adminEmail,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, false, fmt.Errorf("create user: %w", err)
	}
	return u, true, nil
}

func (s *Service) GetByID(ctx context.Context, id ID) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("repository is required")
	}
	if id == "" {
		return User{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("repository is required")
	}
	addr := normalizeEmail(email)
	if addr == "" {
		return User{}, ErrInvalidInput
	}
	return s.repo.GetByEmail(ctx, addr)
}

// ListVisible returns non-admin, non-banned users.
func (s *Service) ListVisible(ctx context.Context) ([]User, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	return s.repo.ListVisible(ctx)
}

// ListForAdmin returns every user when requesterID holds the admin role.
// A non-admin requester silently gets the filtered list instead.
func (s *Service) ListForAdmin(ctx context.Context, requesterID ID) ([]User, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	if requesterID != "" {
		requester, err := s.repo.GetByID(ctx, requesterID)
		if err == nil && requester.IsAdmin {
			return s.repo.ListAll(ctx)
		}
	}
	return s.repo.ListVisible(ctx)
}

func (s *Service) UpdateProfile(ctx context.Context, id ID, update ProfileUpdate) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("repository is required")
	}
	if id == "" || update.Empty() {
		return User{}, ErrInvalidInput
	}
	if update.Username != nil && strings.TrimSpace(*update.Username) == "" {
		return User{}, ErrInvalidInput
	}
	if err := s.repo.UpdateProfile(ctx, id, update); err != nil {
		return User{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// SoftBan marks the user banned without touching their data.
func (s *Service) SoftBan(ctx context.Context, id ID) error {
	if s.repo == nil {
		return errors.New("repository is required")
	}
	if id == "" {
		return ErrInvalidInput
	}
	return s.repo.SetBanned(ctx, id, true)
}

// Touch bumps the user's lastSeen to now.
func (s *Service) Touch(ctx context.Context, id ID) error {
	if s.repo == nil {
		return errors.New("repository is required")
	}
	if id == "" {
		return ErrInvalidInput
	}
	return s.repo.SetLastSeen(ctx, id, s.now().UnixMilli())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okvist/parley/internal/user"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("group not found")
)

// MessagePurger removes a group's message history when the group goes away.
type MessagePurger interface {
	DeleteForGroup(ctx context.Context, groupID string) (int64, error)
}

type Service struct {
	repo  Repository
	users *user.Service
	purge MessagePurger
	idGen func() ID
	now   func() time.Time
}

func NewService(repo Repository, users *user.Service, purge MessagePurger) *Service {
	return &Service{
		repo:  repo,
		users: users,
		purge: purge,
		idGen: func() ID {
			return ID(uuid.NewString())
		},
		now: time.Now,
	}
}

// Create stores a new group. The admin need not be the creator but is always
// folded into the member set; at least two distinct members are required.
func (s *Service) Create(ctx context.Context, name, avatarURL, adminID string, memberIDs []string) (Group, error) {
	if s.repo == nil {
		return Group{}, errors.New("repository is required")
	}
	name = strings.TrimSpace(name)
	adminID = strings.TrimSpace(adminID)
	if name == "" || adminID == "" {
		return Group{}, fmt.Errorf("%w: name and adminId are required", ErrInvalidInput)
	}

	members := dedupeMembers(append([]string{adminID}, memberIDs...))
	if len(members) < 2 {
		return Group{}, fmt.Errorf("%w: a group needs at least two members", ErrInvalidInput)
	}

	g := Group{
		ID:        s.idGen(),
		Name:      name,
		AvatarURL: strings.TrimSpace(avatarURL),
		AdminID:   adminID,
		MemberIDs: members,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Group, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListForUser(ctx, userID)
}

// ListAllForAdmin returns every group. Unlike the user listing there is no
// silent fallback: a non-admin requester is refused.
func (s *Service) ListAllForAdmin(ctx context.Context, requesterID string) ([]Group, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	if strings.TrimSpace(requesterID) == "" {
		return nil, ErrInvalidInput
	}
	if !s.isSuperuser(ctx, requesterID) {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return s.repo.ListAll(ctx)
}

// Delete removes a group and its message history. Allowed for the group admin
// or a superuser. The cascade is a separate step with no rollback: a group
// left without its history is acceptable partial state.
func (s *Service) Delete(ctx context.Context, actorID string, id ID) error {
	if s.repo == nil {
		return errors.New("repository is required")
	}
	if id == "" || strings.TrimSpace(actorID) == "" {
		return ErrInvalidInput
	}
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.AdminID != actorID && !s.isSuperuser(ctx, actorID) {
		return fmt.Errorf("%w: only the group admin or a superuser may delete", ErrForbidden)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.purge != nil {
		if _, err := s.purge.DeleteForGroup(ctx, string(id)); err != nil {
			return fmt.Errorf("purge group messages: %w", err)
		}
	}
	return nil
}

// AddMember adds memberID to the group. Group-admin only.
func (s *Service) AddMember(ctx context.Context, actorID string, id ID, memberID string) (Group, error) {
	if s.repo == nil {
		return Group{}, errors.New("repository is required")
	}
	memberID = strings.TrimSpace(memberID)
	if id == "" || strings.TrimSpace(actorID) == "" || memberID == "" {
		return Group{}, ErrInvalidInput
	}
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if g.AdminID != actorID {
		return Group{}, fmt.Errorf("%w: only the group admin may add members", ErrForbidden)
	}
	if g.HasMember(memberID) {
		return g, nil
	}
	g.MemberIDs = append(g.MemberIDs, memberID)
	if err := s.repo.SetMembers(ctx, id, g.MemberIDs); err != nil {
		return Group{}, err
	}
	return g, nil
}

// RemoveMember removes memberID from the group. Group-admin only; the admin
// themselves can never be removed, the group must be deleted instead.
func (s *Service) RemoveMember(ctx context.Context, actorID string, id ID, memberID string) (Group, error) {
	if s.repo == nil {
		return Group{}, errors.New("repository is required")
	}
	memberID = strings.TrimSpace(memberID)
	if id == "" || strings.TrimSpace(actorID) == "" || memberID == "" {
		return Group{}, ErrInvalidInput
	}
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if g.AdminID != actorID {
		return Group{}, fmt.Errorf("%w: only the group admin may remove members", ErrForbidden)
	}
	if memberID == g.AdminID {
		return Group{}, fmt.Errorf("%w: the group admin cannot be removed", ErrForbidden)
	}
	if !g.HasMember(memberID) {
		return g, nil
	}
	kept := make([]string, 0, len(g.MemberIDs)-1)
	for _, m := range g.MemberIDs {
		if m != memberID {
			kept = append(kept, m)
		}
	}
	g.MemberIDs = kept
	if err := s.repo.SetMembers(ctx, id, kept); err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *Service) isSuperuser(ctx context.Context, userID string) bool {
	if s.users == nil {
		return false
	}
	u, err := s.users.GetByID(ctx, user.ID(userID))
	return err == nil && u.IsAdmin
}

func dedupeMembers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Package admin implements the multi-step moderation actions. Each action is
// a sequence of independent, individually idempotent store operations with no
// rollback: a failure partway leaves the earlier steps in place and is
// reported to the caller (accepted, documented behavior).
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

type Service struct {
	users    user.Repository
	messages message.Repository
	groups   group.Repository
}

func NewService(users user.Repository, messages message.Repository, groups group.Repository) *Service {
	return &Service{
		users:    users,
		messages: messages,
		groups:   groups,
	}
}

// CleanupResult reports how many records each cleanup step removed.
type CleanupResult struct {
	Users    int64
	Messages int64
	Groups   int64
}

// Ban marks the target banned, deletes every message they sent or received,
// and strips them from all group member sets, in that order.
func (s *Service) Ban(ctx context.Context, adminID, targetID user.ID) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if targetID == "" {
		return ErrInvalidInput
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}

	if err := s.users.SetBanned(ctx, targetID, true); err != nil {
		return fmt.Errorf("mark banned: %w", err)
	}
	if _, err := s.messages.DeleteForUser(ctx, string(targetID)); err != nil {
		return fmt.Errorf("delete banned user messages: %w", err)
	}
	if _, err := s.groups.RemoveMemberFromAll(ctx, string(targetID)); err != nil {
		return fmt.Errorf("strip group membership: %w", err)
	}
	return nil
}

// PermanentDelete hard-deletes the target and runs the same cascades as Ban.
func (s *Service) PermanentDelete(ctx context.Context, adminID, targetID user.ID) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if targetID == "" {
		return ErrInvalidInput
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if _, err := s.messages.DeleteForUser(ctx, string(targetID)); err != nil {
		return fmt.Errorf("delete user messages: %w", err)
	}
	if _, err := s.groups.RemoveMemberFromAll(ctx, string(targetID)); err != nil {
		return fmt.Errorf("strip group membership: %w", err)
	}
	return nil
}

// Cleanup wipes every non-admin user, all messages, and all groups.
func (s *Service) Cleanup(ctx context.Context, adminID user.ID) (CleanupResult, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return CleanupResult{}, err
	}

	var result CleanupResult
	var err error
	if result.Users, err = s.users.DeleteNonAdmins(ctx); err != nil {
		return result, fmt.Errorf("delete users: %w", err)
	}
	if result.Messages, err = s.messages.DeleteAll(ctx); err != nil {
		return result, fmt.Errorf("delete messages: %w", err)
	}
	if result.Groups, err = s.groups.DeleteAll(ctx); err != nil {
		return result, fmt.Errorf("delete groups: %w", err)
	}
	return result, nil
}

func (s *Service) requireAdmin(ctx context.Context, adminID user.ID) error {
	if s.users == nil || s.messages == nil || s.groups == nil {
		return errors.New("repositories are required")
	}
	if strings.TrimSpace(string(adminID)) == "" {
		return ErrInvalidInput
	}
	actor, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if !actor.IsAdmin {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

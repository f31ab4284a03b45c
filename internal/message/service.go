package message

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okvist/parley/internal/user"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("message not found")
)

// DefaultHistoryLimit caps conversation reads.
const DefaultHistoryLimit = 500

type Service struct {
	repo         Repository
	users        *user.Service
	historyLimit int
	idGen        func() ID
}

func NewService(repo Repository, users *user.Service, historyLimit int) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Service{
		repo:         repo,
		users:        users,
		historyLimit: historyLimit,
		idGen: func() ID {
			return ID(uuid.NewString())
		},
	}
}

// Create stores a message. A repeat of an already-stored
// (sender, receiver, timestamp) triple returns the stored message with
// created=false instead of inserting a duplicate.
func (s *Service) Create(ctx context.Context, m Message) (Message, bool, error) {
	if s.repo == nil {
		return Message{}, false, errors.New("repository is required")
	}
	if err := validate(m); err != nil {
		return Message{}, false, err
	}

	if s.users != nil {
		sender, err := s.users.GetByID(ctx, user.ID(m.SenderID))
		if err == nil && sender.IsBanned {
			return Message{}, false, fmt.Errorf("%w: sender is banned", ErrForbidden)
		}
	}

	existing, err := s.repo.GetByKey(ctx, m.SenderID, m.ReceiverID, m.Timestamp)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Message{}, false, fmt.Errorf("lookup message by key: %w", err)
	}

	if m.ID == "" {
		m.ID = s.idGen()
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Message{}, false, fmt.Errorf("create message: %w", err)
	}
	return m, true, nil
}

// ListDirect returns the conversation between a and b in either direction,
// ascending by timestamp, capped at the history limit.
func (s *Service) ListDirect(ctx context.Context, a, b string) ([]Message, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListDirect(ctx, a, b, s.historyLimit)
}

func (s *Service) ListGroup(ctx context.Context, groupID string) ([]Message, error) {
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListGroup(ctx, groupID, s.historyLimit)
}

// UpdateStatus advances a message's delivery status. Transitions that would
// move backwards are ignored so repeated delivery/read reports stay safe.
func (s *Service) UpdateStatus(ctx context.Context, id ID, status Status) (Message, error) {
	if s.repo == nil {
		return Message{}, errors.New("repository is required")
	}
	if id == "" || !ValidStatus(status) {
		return Message{}, ErrInvalidInput
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if statusRank[status] <= statusRank[current.Status] {
		return current, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return Message{}, err
	}
	current.Status = status
	return current, nil
}

// Edit replaces the text of a text message. Only the original sender may edit.
func (s *Service) Edit(ctx context.Context, actorID string, id ID, text string) (Message, error) {
	if s.repo == nil {
		return Message{}, errors.New("repository is required")
	}
	if id == "" || strings.TrimSpace(actorID) == "" || strings.TrimSpace(text) == "" {
		return Message{}, ErrInvalidInput
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if current.SenderID != actorID {
		return Message{}, fmt.Errorf("%w: only the sender may edit", ErrForbidden)
	}
	if current.Type != TypeText {
		return Message{}, fmt.Errorf("%w: only text messages can be edited", ErrInvalidInput)
	}
	if err := s.repo.UpdateText(ctx, id, text); err != nil {
		return Message{}, err
	}
	current.Text = text
	return current, nil
}

func (s *Service) Delete(ctx context.Context, id ID) error {
	if s.repo == nil {
		return errors.New("repository is required")
	}
	if id == "" {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

// DeleteForGroup removes every message addressed to a group. Group deletion
// calls this after the group row is gone.
func (s *Service) DeleteForGroup(ctx context.Context, groupID string) (int64, error) {
	if s.repo == nil {
		return 0, errors.New("repository is required")
	}
	if groupID == "" {
		return 0, ErrInvalidInput
	}
	return s.repo.DeleteForGroup(ctx, groupID)
}

func validate(m Message) error {
	if strings.TrimSpace(m.SenderID) == "" || strings.TrimSpace(m.ReceiverID) == "" {
		return fmt.Errorf("%w: senderId and receiverId are required", ErrInvalidInput)
	}
	if m.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidInput)
	}

	switch m.Type {
	case TypeText:
		if m.Text == "" || m.ImageURL != "" || m.AudioURL != "" || m.FileURL != "" {
			return fmt.Errorf("%w: text message must carry exactly a text payload", ErrInvalidInput)
		}
	case TypeImage:
		if m.ImageURL == "" || m.Text != "" || m.AudioURL != "" || m.FileURL != "" {
			return fmt.Errorf("%w: image message must carry exactly an imageUrl payload", ErrInvalidInput)
		}
	case TypeAudio:
		if m.AudioURL == "" || m.Text != "" || m.ImageURL != "" || m.FileURL != "" {
			return fmt.Errorf("%w: audio message must carry exactly an audioUrl payload", ErrInvalidInput)
		}
	case TypeFile:
		if m.FileURL == "" || m.FileName == "" || m.FileType == "" {
			return fmt.Errorf("%w: file message must carry fileUrl, fileName, and fileType", ErrInvalidInput)
		}
		if m.Text != "" || m.ImageURL != "" || m.AudioURL != "" {
			return fmt.Errorf("%w: file message must carry exactly a file payload", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, m.Type)
	}

	if m.Status != "" && !ValidStatus(m.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, m.Status)
	}
	return nil
}

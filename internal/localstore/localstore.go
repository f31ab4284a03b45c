// Package localstore keeps a durable, process-local mirror of users and
// direct messages for offline use. Groups are intentionally not mirrored:
// group operations have no offline path and completing the mirror would
// change their semantics.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

var ErrNotFound = errors.New("not found in local store")

type localUser struct {
	ID        string `gorm:"primaryKey"`
	Username  string
	Email     string `gorm:"uniqueIndex"`
	AvatarURL string
	Status    string
	LastSeen  int64
	IsAdmin   bool
	IsBanned  bool
	CreatedAt time.Time
}

type localMessage struct {
	ID         string `gorm:"primaryKey"`
	SenderID   string `gorm:"uniqueIndex:idx_local_messages_key"`
	ReceiverID string `gorm:"uniqueIndex:idx_local_messages_key"`
	GroupID    string
	Type       string
	Text       string
	ImageURL   string
	AudioURL   string
	FileURL    string
	FileName   string
	FileType   string
	Timestamp  int64 `gorm:"uniqueIndex:idx_local_messages_key"`
	Status     string
}

type Store struct {
	db *gorm.DB
}

// DefaultPath returns the per-OS-user sqlite file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley", "fallback.db"), nil
}

// Open opens (creating if needed) the sqlite mirror at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("local store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.AutoMigrate(&localUser{}, &localMessage{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveUser upserts by the email natural key, keeping one record per address.
func (s *Store) SaveUser(ctx context.Context, u user.User) error {
	if u.ID == "" || u.Email == "" {
		return fmt.Errorf("user id and email are required")
	}
	record := localUser{
		ID:        string(u.ID),
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Status:    u.Status,
		LastSeen:  u.LastSeen,
		IsAdmin:   u.IsAdmin,
		IsBanned:  u.IsBanned,
		CreatedAt: u.CreatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("save local user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (user.User, error) {
	var record localUser
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("select local user: %w", err)
	}
	return toUser(record), nil
}

// Users returns the mirrored roster under the same visibility rules as the
// remote listing: admins and banned users stay hidden.
func (s *Store) Users(ctx context.Context) ([]user.User, error) {
	var records []localUser
	err := s.db.WithContext(ctx).
		Where("is_admin = ? AND is_banned = ?", false, false).
		Order("created_at").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list local users: %w", err)
	}
	users := make([]user.User, 0, len(records))
	for _, record := range records {
		users = append(users, toUser(record))
	}
	return users, nil
}

// SaveMessage appends a message, silently skipping a duplicate of the
// (sender, receiver, timestamp) natural key so the mirror matches the remote
// store's dedupe behavior.
func (s *Store) SaveMessage(ctx context.Context, m message.Message) error {
	if m.ID == "" || m.SenderID == "" || m.ReceiverID == "" || m.Timestamp <= 0 {
		return fmt.Errorf("message id, sender, receiver, and timestamp are required")
	}
	record := localMessage{
		ID:         string(m.ID),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		GroupID:    m.GroupID,
		Type:       string(m.Type),
		Text:       m.Text,
		ImageURL:   m.ImageURL,
		AudioURL:   m.AudioURL,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileType:   m.FileType,
		Timestamp:  m.Timestamp,
		Status:     string(m.Status),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("save local message: %w", err)
	}
	return nil
}

// DirectMessages returns the mirror's conversation between a and b in either
// direction, ascending by timestamp, matching the remote ordering.
func (s *Store) DirectMessages(ctx context.Context, a, b string) ([]message.Message, error) {
	var records []localMessage
	err := s.db.WithContext(ctx).
		Where("group_id = ''").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("timestamp ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list local messages: %w", err)
	}
	msgs := make([]message.Message, 0, len(records))
	for _, record := range records {
		msgs = append(msgs, toMessage(record))
	}
	return msgs, nil
}

func toUser(record localUser) user.User {
	return user.User{
		ID:        user.ID(record.ID),
		Username:  record.Username,
		Email:     record.Email,
		AvatarURL: record.AvatarURL,
		Status:    record.Status,
		LastSeen:  record.LastSeen,
		IsAdmin:   record.IsAdmin,
		IsBanned:  record.IsBanned,
		CreatedAt: record.CreatedAt,
	}
}

func toMessage(record localMessage) message.Message {
	return message.Message{
		ID:         message.ID(record.ID),
		SenderID:   record.SenderID,
		ReceiverID: record.ReceiverID,
		GroupID:    record.GroupID,
		Type:       message.Type(record.Type),
		Text:       record.Text,
		ImageURL:   record.ImageURL,
		AudioURL:   record.AudioURL,
		FileURL:    record.FileURL,
		FileName:   record.FileName,
		FileType:   record.FileType,
		Timestamp:  record.Timestamp,
		Status:     message.Status(record.Status),
	}
}

package message

import (
	"context"
)

type ID string

// Type tags which payload field a message carries.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeAudio Type = "audio"
	TypeFile  Type = "file"
)

// Status follows sent -> delivered -> read and never moves backwards.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

func ValidStatus(s Status) bool {
	_, ok := statusRank[s]
	return ok
}

// Message is a direct or group message. GroupID empty means a direct message
// between SenderID and ReceiverID; otherwise ReceiverID holds the group id.
// Timestamp is assigned by the sending client in unix milliseconds and forms
// the dedupe key (SenderID, ReceiverID, Timestamp) together with the ids.
type Message struct {
	ID         ID
	SenderID   string
	ReceiverID string
	GroupID    string
	Type       Type
	Text       string
	ImageURL   string
	AudioURL   string
	FileURL    string
	FileName   string
	FileType   string
	Timestamp  int64
	Status     Status
}

type Repository interface {
	Create(ctx context.Context, m Message) error
	GetByID(ctx context.Context, id ID) (Message, error)
	GetByKey(ctx context.Context, senderID, receiverID string, timestamp int64) (Message, error)
	ListDirect(ctx context.Context, a, b string, limit int) ([]Message, error)
	ListGroup(ctx context.Context, groupID string, limit int) ([]Message, error)
	UpdateStatus(ctx context.Context, id ID, status Status) error
	UpdateText(ctx context.Context, id ID, text string) error
	Delete(ctx context.Context, id ID) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	DeleteForGroup(ctx context.Context, groupID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

package models

import "time"

// MessageType enumerates the allowed message content kinds.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Valid reports whether t is one of the allowed kinds.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// RequiresFileURL reports whether the kind must carry an attachment URL.
func (t MessageType) RequiresFileURL() bool {
	return t == MessageTypeImage || t == MessageTypeFile
}

// MaxMessageContentLength bounds message content size.
const MaxMessageContentLength = 4000

// Message represents a persisted chat message. CreatedAt is assigned by the
// store and is the ordering key within a room; ties break by ID.
type Message struct {
	ID         int64       `db:"id" json:"id"`
	ChatID     int64       `db:"chat_id" json:"chat_id"`
	RoomID     RoomID      `db:"-" json:"room_id"`
	SenderID   int64       `db:"sender_id" json:"sender_id"`
	ReceiverID int64       `db:"receiver_id" json:"receiver_id"`
	Content    string      `db:"content" json:"content"`
	Type       MessageType `db:"type" json:"type"`
	FileURL    *string     `db:"file_url" json:"file_url,omitempty"`
	ReplyToID  *int64      `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsRead     bool        `db:"is_read" json:"is_read"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// MessageDraft carries a validated send request into the repository.
type MessageDraft struct {
	Content   string
	Type      MessageType
	FileURL   *string
	ReplyToID *int64
}

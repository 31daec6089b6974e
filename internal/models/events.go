package models

import "encoding/json"

// Client actions accepted over the websocket.
const (
	ActionJoinChat         = "join_chat"
	ActionLeaveChat        = "leave_chat"
	ActionSendMessage      = "send_message"
	ActionTyping           = "typing"
	ActionMarkMessagesRead = "mark_messages_read"
)

// Server event types pushed over the websocket.
const (
	EventAck           = "ack"
	EventNewMessage    = "new_message"
	EventTyping        = "typing"
	EventMessagesRead  = "messages_read"
	EventUserJoined    = "user_joined"
	EventUserLeft      = "user_left"
	EventSessionUpdate = "session_update"
	EventNotification  = "notification"
)

// ErrorCode classifies a rejected client action.
type ErrorCode string

const (
	CodeAuthError        ErrorCode = "auth_error"
	CodeMembershipError  ErrorCode = "membership_error"
	CodeValidationError  ErrorCode = "validation_error"
	CodePersistenceError ErrorCode = "persistence_error"
	CodeReadError        ErrorCode = "read_error"
)

// ClientFrame is the envelope for every client-initiated websocket event.
// AckID, when set, is echoed back on the matching AckEvent.
type ClientFrame struct {
	Action     string      `json:"action"`
	AckID      string      `json:"ack_id,omitempty"`
	RoomID     RoomID      `json:"room_id,omitempty"`
	Content    string      `json:"content,omitempty"`
	Type       MessageType `json:"type,omitempty"`
	FileURL    *string     `json:"file_url,omitempty"`
	ReplyToID  *int64      `json:"reply_to_id,omitempty"`
	IsTyping   bool        `json:"is_typing,omitempty"`
	MessageIDs []int64     `json:"message_ids,omitempty"`
}

// EventError is the wire form of a rejected action.
type EventError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AckEvent answers a client frame that carried an ack id. Message is set for
// successful sends so the caller receives the persisted record.
type AckEvent struct {
	Type    string      `json:"type"`
	AckID   string      `json:"ack_id"`
	OK      bool        `json:"ok"`
	RoomID  RoomID      `json:"room_id,omitempty"`
	Message *Message    `json:"message,omitempty"`
	Error   *EventError `json:"error,omitempty"`
}

// MessageEvent delivers a persisted message to room subscribers.
type MessageEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// TypingEvent is the ephemeral typing indicator.
type TypingEvent struct {
	Type     string `json:"type"`
	RoomID   RoomID `json:"room_id"`
	UserID   int64  `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// ReadEvent tells room subscribers that messages were marked read.
type ReadEvent struct {
	Type       string  `json:"type"`
	RoomID     RoomID  `json:"room_id"`
	UserID     int64   `json:"user_id"`
	MessageIDs []int64 `json:"message_ids"`
}

// PresenceEvent announces a user entering or leaving a room.
type PresenceEvent struct {
	Type   string `json:"type"`
	RoomID RoomID `json:"room_id"`
	UserID int64  `json:"user_id"`
}

// SessionEvent broadcasts a session status change to its two members.
type SessionEvent struct {
	Type      string        `json:"type"`
	SessionID int64         `json:"session_id"`
	Status    SessionStatus `json:"status"`
}

// NotificationEvent is a best-effort push into a user's notification room.
type NotificationEvent struct {
	Type             string          `json:"type"`
	NotificationType string          `json:"notification_type"`
	Message          string          `json:"message"`
	Data             json.RawMessage `json:"data,omitempty"`
}

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RoomKind distinguishes the three channel types the hub carries.
type RoomKind string

const (
	RoomKindChat         RoomKind = "chat"
	RoomKindSession      RoomKind = "session"
	RoomKindNotification RoomKind = "notify"
)

// RoomID identifies a logical channel, e.g. "chat:12" or "notify:7".
type RoomID string

func ChatRoomID(chatID int64) RoomID {
	return RoomID(fmt.Sprintf("chat:%d", chatID))
}

func SessionRoomID(sessionID int64) RoomID {
	return RoomID(fmt.Sprintf("session:%d", sessionID))
}

// NotificationRoomID derives the singleton per-user notification room.
func NotificationRoomID(userID int64) RoomID {
	return RoomID(fmt.Sprintf("notify:%d", userID))
}

// Parse splits a room id into its kind and numeric reference.
func (r RoomID) Parse() (RoomKind, int64, error) {
	kind, ref, ok := strings.Cut(string(r), ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed room id %q", r)
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("malformed room id %q", r)
	}
	switch RoomKind(kind) {
	case RoomKindChat, RoomKindSession, RoomKindNotification:
		return RoomKind(kind), id, nil
	}
	return "", 0, fmt.Errorf("unknown room kind %q", kind)
}

// Chat represents a private chat between exactly two users.
type Chat struct {
	ID          int64     `db:"id" json:"id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	CounselorID int64     `db:"counselor_id" json:"counselor_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// OtherParticipant resolves the chat member that is not userID.
func (c Chat) OtherParticipant(userID int64) int64 {
	if c.PatientID == userID {
		return c.CounselorID
	}
	return c.PatientID
}

// HasParticipant reports whether userID belongs to the chat.
func (c Chat) HasParticipant(userID int64) bool {
	return c.PatientID == userID || c.CounselorID == userID
}

// ChatSummary provides an API-friendly view of a chat for a user.
type ChatSummary struct {
	ChatID        int64     `json:"chat_id"`
	RoomID        RoomID    `json:"room_id"`
	ParticipantID int64     `json:"participant_id"`
	CreatedAt     time.Time `json:"created_at"`
}

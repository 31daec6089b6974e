package ws

import (
	"sync"
	"time"

	"messaging-service/internal/models"
)

type typingKey struct {
	roomID models.RoomID
	userID int64
}

// TypingTracker holds ephemeral typing state, keyed by (room, user). Entries
// expire after a short TTL so the map stays bounded; clients treat a missing
// refresh as an implicit stop. Nothing here is ever persisted.
type TypingTracker struct {
	mu     sync.Mutex
	ttl    time.Duration
	active map[typingKey]*time.Timer
}

// NewTypingTracker constructs a tracker with the given expiry interval.
func NewTypingTracker(ttl time.Duration) *TypingTracker {
	return &TypingTracker{
		ttl:    ttl,
		active: make(map[typingKey]*time.Timer),
	}
}

// Start records that a user is typing in a room, refreshing the TTL if the
// entry already exists.
func (t *TypingTracker) Start(roomID models.RoomID, userID int64) {
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.active[key]; ok {
		timer.Reset(t.ttl)
		return
	}
	t.active[key] = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		delete(t.active, key)
		t.mu.Unlock()
	})
}

// Stop clears a typing entry and reports whether it was active.
func (t *TypingTracker) Stop(roomID models.RoomID, userID int64) bool {
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.active[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.active, key)
	return true
}

// IsTyping reports whether the user currently has a live typing entry.
func (t *TypingTracker) IsTyping(roomID models.RoomID, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[typingKey{roomID: roomID, userID: userID}]
	return ok
}

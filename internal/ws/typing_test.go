package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"messaging-service/internal/models"
)

func TestTypingTrackerStartAndStop(t *testing.T) {
	tracker := NewTypingTracker(time.Minute)
	roomID := models.ChatRoomID(5)

	assert.False(t, tracker.IsTyping(roomID, 1))

	tracker.Start(roomID, 1)
	assert.True(t, tracker.IsTyping(roomID, 1))
	assert.False(t, tracker.IsTyping(roomID, 2))

	assert.True(t, tracker.Stop(roomID, 1))
	assert.False(t, tracker.IsTyping(roomID, 1))
	assert.False(t, tracker.Stop(roomID, 1), "second stop is a no-op")
}

func TestTypingTrackerExpiresEntries(t *testing.T) {
	tracker := NewTypingTracker(20 * time.Millisecond)
	roomID := models.ChatRoomID(5)

	tracker.Start(roomID, 1)
	assert.True(t, tracker.IsTyping(roomID, 1))

	assert.Eventually(t, func() bool {
		return !tracker.IsTyping(roomID, 1)
	}, time.Second, 5*time.Millisecond)
}

func TestTypingTrackerRefreshExtendsTTL(t *testing.T) {
	tracker := NewTypingTracker(60 * time.Millisecond)
	roomID := models.ChatRoomID(5)

	tracker.Start(roomID, 1)
	time.Sleep(40 * time.Millisecond)
	tracker.Start(roomID, 1)
	time.Sleep(40 * time.Millisecond)

	assert.True(t, tracker.IsTyping(roomID, 1), "refresh should reset the TTL")
}

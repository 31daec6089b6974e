package ws

import (
	"encoding/json"
	"log"
	"sync"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Hub is the process-wide room registry: one broadcast group per active room,
// created lazily on first join and torn down when the last connection leaves.
type Hub struct {
	mu    sync.RWMutex
	rooms map[models.RoomID]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[models.RoomID]map[*Client]struct{})}
}

// Join subscribes a connection to a room. Re-joining is a no-op success.
// firstForUser reports whether this is the user's first live connection in
// the room, which is when a presence signal should fire.
func (h *Hub) Join(roomID models.RoomID, c *Client) (alreadyJoined bool, firstForUser bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[roomID] = room
	}
	if _, ok := room[c]; ok {
		return true, false
	}

	firstForUser = !h.userPresentLocked(room, c.identity.UserID)
	room[c] = struct{}{}
	c.joined[roomID] = struct{}{}
	return false, firstForUser
}

// Leave unsubscribes a connection from a room. lastForUser reports whether
// the user no longer has any live connection in the room.
func (h *Hub) Leave(roomID models.RoomID, c *Client) (wasJoined bool, lastForUser bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(roomID, c)
}

func (h *Hub) leaveLocked(roomID models.RoomID, c *Client) (wasJoined bool, lastForUser bool) {
	room, ok := h.rooms[roomID]
	if !ok {
		return false, false
	}
	if _, ok := room[c]; !ok {
		return false, false
	}

	delete(room, c)
	delete(c.joined, roomID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	return true, !h.userPresentLocked(room, c.identity.UserID)
}

// LeftRoom describes one room a disconnecting client was removed from.
type LeftRoom struct {
	RoomID      models.RoomID
	LastForUser bool
}

// LeaveAll removes the connection from every room it had joined, in one pass.
// Used on disconnect.
func (h *Hub) LeaveAll(c *Client) []LeftRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	left := make([]LeftRoom, 0, len(c.joined))
	for roomID := range c.joined {
		if wasJoined, lastForUser := h.leaveLocked(roomID, c); wasJoined {
			left = append(left, LeftRoom{RoomID: roomID, LastForUser: lastForUser})
		}
	}
	return left
}

func (h *Hub) userPresentLocked(room map[*Client]struct{}, userID int64) bool {
	for member := range room {
		if member.identity.UserID == userID {
			return true
		}
	}
	return false
}

// RoomSize reports the number of live connections in a room.
func (h *Hub) RoomSize(roomID models.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomSizes returns the connection count per active room.
func (h *Hub) RoomSizes() map[models.RoomID]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sizes := make(map[models.RoomID]int, len(h.rooms))
	for roomID, members := range h.rooms {
		sizes[roomID] = len(members)
	}
	return sizes
}

// Broadcast fans an event out to every connection joined to the room. The
// payload is marshalled once; a slow consumer has its connection dropped and
// recovers through backfill.
func (h *Hub) Broadcast(roomID models.RoomID, event any) {
	h.broadcast(roomID, event, 0)
}

// BroadcastExcept fans out to every connection in the room except those
// belonging to exceptUserID.
func (h *Hub) BroadcastExcept(roomID models.RoomID, event any, exceptUserID int64) {
	h.broadcast(roomID, event, exceptUserID)
}

func (h *Hub) broadcast(roomID models.RoomID, event any, exceptUserID int64) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast marshal error room=%s: %v", roomID, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for member := range h.rooms[roomID] {
		if exceptUserID != 0 && member.identity.UserID == exceptUserID {
			continue
		}
		targets = append(targets, member)
	}
	h.mu.RUnlock()

	for _, member := range targets {
		if !member.enqueue(payload) {
			observability.IncWSDroppedFrames()
		}
	}
}

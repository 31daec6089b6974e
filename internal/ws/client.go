package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 * 1024
	sendBufferSize = 256
)

// ConnInfo carries handshake metadata for audit and telemetry events. None
// of it participates in authorization.
type ConnInfo struct {
	ConnID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client is one live, authenticated websocket connection. A user may hold
// several clients at once (multi-device). The joined set is only ever touched
// from the client's own read goroutine, via the hub.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	info     ConnInfo

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	joined map[models.RoomID]struct{}
}

func newClient(conn *websocket.Conn, identity auth.Identity, info ConnInfo) *Client {
	return &Client{
		id:       info.ConnID,
		identity: identity,
		conn:     conn,
		info:     info,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		joined:   make(map[models.RoomID]struct{}),
	}
}

// Identity returns the immutable identity attached at authentication.
func (c *Client) Identity() auth.Identity {
	return c.identity
}

// IsJoined reports whether the connection currently subscribes to the room.
func (c *Client) IsJoined(roomID models.RoomID) bool {
	_, ok := c.joined[roomID]
	return ok
}

// enqueue hands a marshalled frame to the write pump. A full buffer means the
// consumer stopped draining; the connection is dropped and the client catches
// up through the history read path.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		c.close()
		return false
	}
}

// sendEvent marshals and enqueues a single event for this connection only.
func (c *Client) sendEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

const (
	opTimeout    = 10 * time.Second
	wsRoutingKey = "ws_events.messaging"
	maxReadBatch = 500
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway owns the websocket endpoint: it authenticates the handshake,
// registers the connection with the hub and dispatches client frames to the
// room registry, message dispatcher, typing tracker and read reconciler.
type Gateway struct {
	hub       *Hub
	verifier  *auth.Verifier
	chats     repositories.ChatRepository
	sessions  repositories.SessionRepository
	messages  repositories.MessageRepository
	typing    *TypingTracker
	publisher rabbitmq.Publisher
	audit     *telemetry.AuditEmitter
}

// NewGateway constructs a Gateway.
func NewGateway(
	hub *Hub,
	verifier *auth.Verifier,
	chats repositories.ChatRepository,
	sessions repositories.SessionRepository,
	messages repositories.MessageRepository,
	typing *TypingTracker,
	publisher rabbitmq.Publisher,
	audit *telemetry.AuditEmitter,
) *Gateway {
	return &Gateway{
		hub:       hub,
		verifier:  verifier,
		chats:     chats,
		sessions:  sessions,
		messages:  messages,
		typing:    typing,
		publisher: publisher,
		audit:     audit,
	}
}

// Handle authenticates and upgrades a websocket connection. The credential is
// checked before the upgrade; a connection that fails here never joins a room.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	requestID := observability.RequestIDFromRequest(c.Request)
	identity, err := g.verifier.Authenticate(bearerToken(c))
	if err != nil {
		g.audit.Emit(ctx, "WARN", "websocket credential rejected", requestID, nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, identity, info)

	// Every authenticated connection subscribes to its own notification room;
	// the client never asks for it.
	g.hub.Join(models.NotificationRoomID(identity.UserID), client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	g.publishConnEvent(context.Background(), client, "ws_connect", "")

	go client.writePump()
	go g.readPump(client)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func (g *Gateway) readPump(client *Client) {
	var closeReason string
	defer func() {
		g.handleDisconnect(client, closeReason)
	}()

	client.conn.SetReadLimit(maxFrameSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame models.ClientFrame
		if err := client.conn.ReadJSON(&frame); err != nil {
			// Malformed JSON on an otherwise healthy connection is a client
			// bug; reject the frame, keep the connection.
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				g.ack(client, models.ClientFrame{}, nil, &models.EventError{
					Code: models.CodeValidationError, Message: "malformed frame",
				})
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				closeReason = err.Error()
			}
			return
		}
		g.dispatch(client, frame)
	}
}

func (g *Gateway) dispatch(client *Client, frame models.ClientFrame) {
	observability.IncWSEvent(frame.Action)

	switch frame.Action {
	case models.ActionJoinChat:
		g.handleJoin(client, frame)
	case models.ActionLeaveChat:
		g.handleLeave(client, frame)
	case models.ActionSendMessage:
		g.handleSend(client, frame)
	case models.ActionTyping:
		g.handleTyping(client, frame)
	case models.ActionMarkMessagesRead:
		g.handleMarkRead(client, frame)
	default:
		g.ack(client, frame, nil, &models.EventError{
			Code:    models.CodeValidationError,
			Message: fmt.Sprintf("unknown action %q", frame.Action),
		})
	}
}

// checkMembership verifies the authenticated user against the room's
// persistent membership in the store.
func (g *Gateway) checkMembership(ctx context.Context, roomID models.RoomID, identity auth.Identity) (bool, error) {
	kind, ref, err := roomID.Parse()
	if err != nil {
		return false, err
	}
	switch kind {
	case models.RoomKindChat:
		return g.chats.IsParticipant(ctx, ref, identity.UserID)
	case models.RoomKindSession:
		return g.sessions.IsParticipant(ctx, ref, identity.UserID)
	case models.RoomKindNotification:
		return ref == identity.UserID, nil
	}
	return false, nil
}

func (g *Gateway) handleJoin(client *Client, frame models.ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, _, err := frame.RoomID.Parse(); err != nil {
		g.ack(client, frame, nil, &models.EventError{Code: models.CodeValidationError, Message: err.Error()})
		return
	}

	member, err := g.checkMembership(ctx, frame.RoomID, client.identity)
	if err != nil {
		g.ack(client, frame, nil, &models.EventError{Code: models.CodePersistenceError, Message: "membership lookup failed"})
		return
	}
	if !member {
		userID := client.identity.UserID
		g.audit.Emit(ctx, "WARN", fmt.Sprintf("join rejected for room %s", frame.RoomID), client.info.RequestID, &userID)
		g.ack(client, frame, nil, &models.EventError{Code: models.CodeMembershipError, Message: "not a member of this room"})
		return
	}

	alreadyJoined, firstForUser := g.hub.Join(frame.RoomID, client)
	if !alreadyJoined && firstForUser {
		g.hub.BroadcastExcept(frame.RoomID, models.PresenceEvent{
			Type:   models.EventUserJoined,
			RoomID: frame.RoomID,
			UserID: client.identity.UserID,
		}, client.identity.UserID)
	}
	g.ack(client, frame, nil, nil)
}

func (g *Gateway) handleLeave(client *Client, frame models.ClientFrame) {
	wasJoined, lastForUser := g.hub.Leave(frame.RoomID, client)
	if wasJoined {
		g.clearTyping(client, frame.RoomID)
		if lastForUser {
			g.hub.BroadcastExcept(frame.RoomID, models.PresenceEvent{
				Type:   models.EventUserLeft,
				RoomID: frame.RoomID,
				UserID: client.identity.UserID,
			}, client.identity.UserID)
		}
	}
	// Leaving always succeeds, joined or not.
	g.ack(client, frame, nil, nil)
}

func (g *Gateway) handleSend(client *Client, frame models.ClientFrame) {
	if !client.IsJoined(frame.RoomID) {
		g.ack(client, frame, nil, &models.EventError{Code: models.CodeMembershipError, Message: "not joined to this room"})
		return
	}

	kind, chatID, err := frame.RoomID.Parse()
	if err != nil || kind != models.RoomKindChat {
		g.ack(client, frame, nil, &models.EventError{Code: models.CodeValidationError, Message: "messages can only be sent to chat rooms"})
		return
	}

	draft, wireErr := validateDraft(frame)
	if wireErr != nil {
		g.ack(client, frame, nil, wireErr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	chat, err := g.chats.GetChat(ctx, chatID)
	if err != nil {
		g.ack(client, frame, nil, &models.EventError{Code: models.CodePersistenceError, Message: "chat lookup failed"})
		return
	}

	// A reply must point at a message in the same chat.
	if draft.ReplyToID != nil {
		parent, err := g.messages.GetMessage(ctx, *draft.ReplyToID)
		if err != nil || parent.ChatID != chatID {
			g.ack(client, frame, nil, &models.EventError{Code: models.CodeValidationError, Message: "reply_to_id does not reference a message in this chat"})
			return
		}
	}

	// Persist before any fan-out. A failed write means nobody sees the
	// message; the client may resubmit.
	msg, err := g.messages.CreateMessage(ctx, chatID, client.identity.UserID, chat.OtherParticipant(client.identity.UserID), draft)
	if err != nil {
		log.Printf("message persist failed chat=%d sender=%d: %v", chatID, client.identity.UserID, err)
		g.ack(client, frame, nil, &models.EventError{Code: models.CodePersistenceError, Message: "message could not be stored"})
		return
	}

	// All connections in the room, the sender's other devices included.
	g.hub.Broadcast(frame.RoomID, models.MessageEvent{Type: models.EventNewMessage, Message: msg})
	g.ack(client, frame, &msg, nil)
}

func validateDraft(frame models.ClientFrame) (models.MessageDraft, *models.EventError) {
	content := strings.TrimSpace(frame.Content)
	if content == "" {
		return models.MessageDraft{}, &models.EventError{Code: models.CodeValidationError, Message: "content must not be empty"}
	}
	if len(content) > models.MaxMessageContentLength {
		return models.MessageDraft{}, &models.EventError{Code: models.CodeValidationError, Message: "content too long"}
	}

	msgType := frame.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !msgType.Valid() {
		return models.MessageDraft{}, &models.EventError{Code: models.CodeValidationError, Message: fmt.Sprintf("unknown message type %q", frame.Type)}
	}
	if msgType.RequiresFileURL() && (frame.FileURL == nil || *frame.FileURL == "") {
		return models.MessageDraft{}, &models.EventError{Code: models.CodeValidationError, Message: "file_url required for this message type"}
	}

	return models.MessageDraft{
		Content:   content,
		Type:      msgType,
		FileURL:   frame.FileURL,
		ReplyToID: frame.ReplyToID,
	}, nil
}

// handleTyping is fire-and-forget: it never touches the store and a dropped
// signal is acceptable loss.
func (g *Gateway) handleTyping(client *Client, frame models.ClientFrame) {
	if !client.IsJoined(frame.RoomID) {
		return
	}

	if frame.IsTyping {
		g.typing.Start(frame.RoomID, client.identity.UserID)
	} else {
		g.typing.Stop(frame.RoomID, client.identity.UserID)
	}
	g.hub.BroadcastExcept(frame.RoomID, models.TypingEvent{
		Type:     models.EventTyping,
		RoomID:   frame.RoomID,
		UserID:   client.identity.UserID,
		IsTyping: frame.IsTyping,
	}, client.identity.UserID)
}

func (g *Gateway) handleMarkRead(client *Client, frame models.ClientFrame) {
	if len(frame.MessageIDs) == 0 || len(frame.MessageIDs) > maxReadBatch {
		g.ack(client, frame, nil, &models.EventError{Code: models.CodeValidationError, Message: "message_ids must contain between 1 and 500 ids"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// All-or-nothing: a batch with one foreign message flips no flags.
	byChat, err := g.messages.MarkMessagesRead(ctx, client.identity.UserID, frame.MessageIDs)
	if err != nil {
		code := models.CodePersistenceError
		if errors.Is(err, repositories.ErrNotAddressee) || errors.Is(err, repositories.ErrMessageNotFound) {
			code = models.CodeReadError
		}
		g.ack(client, frame, nil, &models.EventError{Code: code, Message: "read batch rejected"})
		return
	}

	// The batch may span rooms; the broadcast is grouped per room.
	for chatID, messageIDs := range byChat {
		g.hub.BroadcastExcept(models.ChatRoomID(chatID), models.ReadEvent{
			Type:       models.EventMessagesRead,
			RoomID:     models.ChatRoomID(chatID),
			UserID:     client.identity.UserID,
			MessageIDs: messageIDs,
		}, client.identity.UserID)
	}
	g.ack(client, frame, nil, nil)
}

// handleDisconnect is the only cancellation path: it removes the connection
// from every room, synthesizes stopped-typing signals and emits presence
// changes, but never unwinds anything already persisted.
func (g *Gateway) handleDisconnect(client *Client, closeReason string) {
	for _, left := range g.hub.LeaveAll(client) {
		if g.typing.Stop(left.RoomID, client.identity.UserID) {
			g.hub.Broadcast(left.RoomID, models.TypingEvent{
				Type:     models.EventTyping,
				RoomID:   left.RoomID,
				UserID:   client.identity.UserID,
				IsTyping: false,
			})
		}
		if left.LastForUser {
			kind, _, _ := left.RoomID.Parse()
			if kind != models.RoomKindNotification {
				g.hub.Broadcast(left.RoomID, models.PresenceEvent{
					Type:   models.EventUserLeft,
					RoomID: left.RoomID,
					UserID: client.identity.UserID,
				})
			}
		}
	}

	client.close()
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	g.publishConnEvent(context.Background(), client, "ws_disconnect", closeReason)
}

func (g *Gateway) ack(client *Client, frame models.ClientFrame, msg *models.Message, wireErr *models.EventError) {
	if frame.AckID == "" {
		if wireErr != nil {
			log.Printf("rejected %s from user=%d: %s %s", frame.Action, client.identity.UserID, wireErr.Code, wireErr.Message)
		}
		return
	}
	client.sendEvent(models.AckEvent{
		Type:    models.EventAck,
		AckID:   frame.AckID,
		OK:      wireErr == nil,
		RoomID:  frame.RoomID,
		Message: msg,
		Error:   wireErr,
	})
}

func (g *Gateway) clearTyping(client *Client, roomID models.RoomID) {
	if g.typing.Stop(roomID, client.identity.UserID) {
		g.hub.BroadcastExcept(roomID, models.TypingEvent{
			Type:     models.EventTyping,
			RoomID:   roomID,
			UserID:   client.identity.UserID,
			IsTyping: false,
		}, client.identity.UserID)
	}
}

func (g *Gateway) publishConnEvent(ctx context.Context, client *Client, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     client.info.ConnID,
			"duration_ms": time.Since(client.info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   client.identity.UserID,
			"role":      client.identity.Role,
			"device_id": client.info.DeviceID,
			"ip":        client.info.IP,
		},
	}
	headers := observability.BuildHeaders(client.info.RequestID, client.info.TraceID)
	_ = g.publisher.Publish(ctx, wsRoutingKey, observability.NewEnvelope("ws_events", event, payload), headers)
}

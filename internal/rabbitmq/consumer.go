package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const (
	RoutingKeyNotificationPush = "notification.push"
	RoutingKeySessionStatus    = "session.status"

	consumerQueue = "messaging-service.pushes"
)

// Broadcaster fans an event out to the live members of a room. Satisfied by
// the websocket hub.
type Broadcaster interface {
	Broadcast(roomID models.RoomID, event any)
}

// SessionUpdater records a session status change pushed by the scheduler.
type SessionUpdater interface {
	UpdateStatus(ctx context.Context, sessionID int64, status models.SessionStatus) (models.Session, error)
}

// notificationPush is the collaborator-facing payload for a user notification.
type notificationPush struct {
	UserID  int64           `json:"user_id"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// sessionStatusPush is the scheduler-facing payload for a status change.
type sessionStatusPush struct {
	SessionID int64                `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
}

// Consumer receives notification and session-status pushes from external
// collaborators and fans them out to live connections. Delivery to clients is
// best-effort: a push for a user with no live connection is dropped, the
// durable record stays with the publishing service.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	hub     Broadcaster
	updater SessionUpdater
}

// NewConsumer connects, declares the topic exchange and binds the push queue.
func NewConsumer(amqpURL, exchange string, hub Broadcaster, updater SessionUpdater) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	queue, err := ch.QueueDeclare(consumerQueue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range []string{RoutingKeyNotificationPush, RoutingKeySessionStatus} {
		if err := ch.QueueBind(queue.Name, key, exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	return &Consumer{conn: conn, ch: ch, hub: hub, updater: updater}, nil
}

// Start consumes deliveries until the channel closes.
func (c *Consumer) Start() error {
	deliveries, err := c.ch.Consume(consumerQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for delivery := range deliveries {
			c.handle(delivery)
		}
		log.Printf("rabbitmq consumer channel closed")
	}()
	return nil
}

func (c *Consumer) handle(delivery amqp.Delivery) {
	observability.IncAMQPConsumed(delivery.RoutingKey)

	switch delivery.RoutingKey {
	case RoutingKeyNotificationPush:
		var push notificationPush
		if err := json.Unmarshal(delivery.Body, &push); err != nil || push.UserID == 0 {
			log.Printf("discarding malformed notification push: %v", err)
			delivery.Nack(false, false)
			return
		}
		c.hub.Broadcast(models.NotificationRoomID(push.UserID), models.NotificationEvent{
			Type:             models.EventNotification,
			NotificationType: push.Type,
			Message:          push.Message,
			Data:             push.Data,
		})
		delivery.Ack(false)

	case RoutingKeySessionStatus:
		var push sessionStatusPush
		if err := json.Unmarshal(delivery.Body, &push); err != nil || push.SessionID == 0 || !push.Status.Valid() {
			log.Printf("discarding malformed session status push: %v", err)
			delivery.Nack(false, false)
			return
		}
		session, err := c.updater.UpdateStatus(context.Background(), push.SessionID, push.Status)
		if err != nil {
			log.Printf("session status update failed session=%d: %v", push.SessionID, err)
			delivery.Nack(false, false)
			return
		}
		c.hub.Broadcast(models.SessionRoomID(session.ID), models.SessionEvent{
			Type:      models.EventSessionUpdate,
			SessionID: session.ID,
			Status:    session.Status,
		})
		delivery.Ack(false)

	default:
		delivery.Nack(false, false)
	}
}

// Close tears down the channel and connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

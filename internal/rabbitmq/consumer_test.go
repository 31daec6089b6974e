package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

type recordingHub struct {
	rooms  []models.RoomID
	events []any
}

func (h *recordingHub) Broadcast(roomID models.RoomID, event any) {
	h.rooms = append(h.rooms, roomID)
	h.events = append(h.events, event)
}

type fakeUpdater struct {
	session models.Session
	err     error
	calls   int
}

func (u *fakeUpdater) UpdateStatus(ctx context.Context, sessionID int64, status models.SessionStatus) (models.Session, error) {
	u.calls++
	if u.err != nil {
		return models.Session{}, u.err
	}
	u.session.ID = sessionID
	u.session.Status = status
	return u.session, nil
}

func TestHandleNotificationPushFansOutToUserRoom(t *testing.T) {
	hub := &recordingHub{}
	consumer := &Consumer{hub: hub, updater: &fakeUpdater{}}

	consumer.handle(amqp.Delivery{
		RoutingKey: RoutingKeyNotificationPush,
		Body:       []byte(`{"user_id":9,"type":"session_reminder","message":"starts soon"}`),
	})

	require.Len(t, hub.events, 1)
	assert.Equal(t, models.NotificationRoomID(9), hub.rooms[0])
	event := hub.events[0].(models.NotificationEvent)
	assert.Equal(t, models.EventNotification, event.Type)
	assert.Equal(t, "session_reminder", event.NotificationType)
	assert.Equal(t, "starts soon", event.Message)
}

func TestHandleSessionStatusRecordsThenBroadcasts(t *testing.T) {
	hub := &recordingHub{}
	updater := &fakeUpdater{}
	consumer := &Consumer{hub: hub, updater: updater}

	consumer.handle(amqp.Delivery{
		RoutingKey: RoutingKeySessionStatus,
		Body:       []byte(`{"session_id":7,"status":"in_progress"}`),
	})

	assert.Equal(t, 1, updater.calls)
	require.Len(t, hub.events, 1)
	assert.Equal(t, models.SessionRoomID(7), hub.rooms[0])
	event := hub.events[0].(models.SessionEvent)
	assert.Equal(t, models.SessionStatusInProgress, event.Status)
}

func TestHandleDiscardsMalformedPushes(t *testing.T) {
	hub := &recordingHub{}
	consumer := &Consumer{hub: hub, updater: &fakeUpdater{}}

	for _, body := range []string{
		`not json`,
		`{"user_id":0,"type":"x"}`,
	} {
		consumer.handle(amqp.Delivery{RoutingKey: RoutingKeyNotificationPush, Body: []byte(body)})
	}
	consumer.handle(amqp.Delivery{RoutingKey: RoutingKeySessionStatus, Body: []byte(`{"session_id":7,"status":"postponed"}`)})
	consumer.handle(amqp.Delivery{RoutingKey: "unknown.key", Body: []byte(`{}`)})

	assert.Empty(t, hub.events)
}

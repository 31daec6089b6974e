package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/telemetry"
)

func TestEmitPublishesEnvelopeWithHeaders(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.messaging", "messaging-service", "test")

	userID := int64(42)
	publisher.On("Publish", mock.Anything, "audit.messaging", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		return ok &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "messaging-service" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == 42 &&
			envelope.Payload.Level == "WARN"
	}), map[string]string{"x-request-id": "req-1"}).Return(nil).Once()

	emitter.Emit(context.Background(), "WARN", "join rejected", "req-1", &userID)
	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.messaging", "messaging-service", "test")
	publisher.On("Publish", mock.Anything, "audit.messaging", mock.Anything, mock.Anything).
		Return(errors.New("broker gone")).Once()

	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "audit test", "", nil)
	})
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "dropped", "", nil)
	})
}

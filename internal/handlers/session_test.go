package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type broadcasterMock struct {
	mock.Mock
}

func (m *broadcasterMock) Broadcast(roomID models.RoomID, event any) {
	m.Called(roomID, event)
}

func sessionRouter(handler *SessionHandler, identity *auth.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if identity != nil {
			c.Set("identity", *identity)
		}
	})
	router.GET("/sessions/:session_id", handler.GetSession)
	router.POST("/internal/sessions/:session_id/status", handler.UpdateSessionStatus)
	return router
}

func postStatus(router *gin.Engine, sessionID, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/sessions/"+sessionID+"/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestUpdateSessionStatusBroadcasts(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	hub := new(broadcasterMock)
	updated := models.Session{ID: 7, PatientID: 1, CounselorID: 2, Status: models.SessionStatusInProgress}
	sessionRepo.On("UpdateStatus", mock.Anything, int64(7), models.SessionStatusInProgress).Return(updated, nil).Once()
	hub.On("Broadcast", models.SessionRoomID(7), models.SessionEvent{
		Type:      models.EventSessionUpdate,
		SessionID: 7,
		Status:    models.SessionStatusInProgress,
	}).Once()

	router := sessionRouter(NewSessionHandler(sessionRepo, hub), &auth.Identity{UserID: 99, Role: auth.RoleAdmin})
	recorder := postStatus(router, "7", `{"status":"in_progress"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	sessionRepo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestUpdateSessionStatusRequiresAdmin(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	hub := new(broadcasterMock)

	router := sessionRouter(NewSessionHandler(sessionRepo, hub), &auth.Identity{UserID: 1, Role: auth.RolePatient})
	recorder := postStatus(router, "7", `{"status":"completed"}`)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	sessionRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestUpdateSessionStatusRejectsUnknownStatus(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	hub := new(broadcasterMock)

	router := sessionRouter(NewSessionHandler(sessionRepo, hub), &auth.Identity{UserID: 99, Role: auth.RoleAdmin})
	recorder := postStatus(router, "7", `{"status":"postponed"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	sessionRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestUpdateSessionStatusUnknownSession(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	hub := new(broadcasterMock)
	sessionRepo.On("UpdateStatus", mock.Anything, int64(404), models.SessionStatusCancelled).
		Return(models.Session{}, repositories.ErrSessionNotFound).Once()

	router := sessionRouter(NewSessionHandler(sessionRepo, hub), &auth.Identity{UserID: 99, Role: auth.RoleAdmin})
	recorder := postStatus(router, "404", `{"status":"cancelled"}`)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	hub.AssertNotCalled(t, "Broadcast")
}

func getSession(router *gin.Engine, sessionID string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+sessionID, nil)
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestGetSessionForParticipant(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	hub := new(broadcasterMock)
	sessionRepo.On("GetSession", mock.Anything, int64(7)).
		Return(models.Session{ID: 7, PatientID: 1, CounselorID: 2, Status: models.SessionStatusScheduled}, nil).Once()

	router := sessionRouter(NewSessionHandler(sessionRepo, hub), &auth.Identity{UserID: 1, Role: auth.RolePatient})
	recorder := getSession(router, "7")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"scheduled"`)
	sessionRepo.AssertExpectations(t)
}

func TestGetSessionRejectsOutsider(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	hub := new(broadcasterMock)
	sessionRepo.On("GetSession", mock.Anything, int64(7)).
		Return(models.Session{ID: 7, PatientID: 1, CounselorID: 2}, nil).Once()

	router := sessionRouter(NewSessionHandler(sessionRepo, hub), &auth.Identity{UserID: 3, Role: auth.RoleCounselor})
	recorder := getSession(router, "7")

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	hub := new(broadcasterMock)
	sessionRepo.On("GetSession", mock.Anything, int64(404)).
		Return(models.Session{}, repositories.ErrSessionNotFound).Once()

	router := sessionRouter(NewSessionHandler(sessionRepo, hub), &auth.Identity{UserID: 1, Role: auth.RolePatient})
	recorder := getSession(router, "404")

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

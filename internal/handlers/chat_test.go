package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func perform(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(recorder, req)
	return recorder
}

func chatRouter(handler *ChatHandler, identity *auth.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if identity != nil {
			c.Set("identity", *identity)
		}
	})
	router.GET("/chats", handler.ListChats)
	router.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	return router
}

func TestListChatsReturnsUserChats(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	summaries := []models.ChatSummary{{ChatID: 1, RoomID: models.ChatRoomID(1), ParticipantID: 9}}
	chatRepo.On("ListChats", mock.Anything, int64(4)).Return(summaries, nil).Once()

	router := chatRouter(NewChatHandler(chatRepo, messageRepo), &auth.Identity{UserID: 4, Role: auth.RolePatient})
	recorder := perform(router, http.MethodGet, "/chats")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"chats"`)
	chatRepo.AssertExpectations(t)
}

func TestListChatsWithoutIdentity(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)

	router := chatRouter(NewChatHandler(chatRepo, messageRepo), nil)
	recorder := perform(router, http.MethodGet, "/chats")

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	chatRepo.AssertNotCalled(t, "ListChats")
}

func TestGetChatMessagesPagesWithCursor(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo.On("IsParticipant", mock.Anything, int64(5), int64(4)).Return(true, nil).Once()

	page := []models.Message{{
		ID: 3, ChatID: 5, SenderID: 9, ReceiverID: 4,
		Content: "hello", Type: models.MessageTypeText, CreatedAt: time.Now().UTC(),
	}}
	messageRepo.On("ListMessages", mock.Anything, int64(5),
		repositories.MessageCursor{BeforeID: 10, Limit: 25}).Return(page, nil).Once()

	router := chatRouter(NewChatHandler(chatRepo, messageRepo), &auth.Identity{UserID: 4, Role: auth.RolePatient})
	recorder := perform(router, http.MethodGet, "/chats/5/messages?before=10&limit=25")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"content":"hello"`)
	messageRepo.AssertExpectations(t)
}

func TestGetChatMessagesRejectsNonMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo.On("IsParticipant", mock.Anything, int64(5), int64(4)).Return(false, nil).Once()

	router := chatRouter(NewChatHandler(chatRepo, messageRepo), &auth.Identity{UserID: 4, Role: auth.RolePatient})
	recorder := perform(router, http.MethodGet, "/chats/5/messages")

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	messageRepo.AssertNotCalled(t, "ListMessages")
}

func TestGetChatMessagesRejectsConflictingCursors(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo.On("IsParticipant", mock.Anything, int64(5), int64(4)).Return(true, nil).Once()

	router := chatRouter(NewChatHandler(chatRepo, messageRepo), &auth.Identity{UserID: 4, Role: auth.RolePatient})
	recorder := perform(router, http.MethodGet, "/chats/5/messages?before=10&after=2")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	messageRepo.AssertNotCalled(t, "ListMessages")
}

func TestGetChatMessagesInvalidChatID(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)

	router := chatRouter(NewChatHandler(chatRepo, messageRepo), &auth.Identity{UserID: 4, Role: auth.RolePatient})
	recorder := perform(router, http.MethodGet, "/chats/abc/messages")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetChatMessagesRepositoryFailure(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	chatRepo.On("IsParticipant", mock.Anything, int64(5), int64(4)).Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, int64(5), repositories.MessageCursor{}).
		Return(nil, errors.New("db down")).Once()

	router := chatRouter(NewChatHandler(chatRepo, messageRepo), &auth.Identity{UserID: 4, Role: auth.RolePatient})
	recorder := perform(router, http.MethodGet, "/chats/5/messages")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

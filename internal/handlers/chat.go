package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/repositories"
)

// ChatHandler serves the REST read path. Together with the live broadcast it
// forms the backfill contract: both draw from the same store and order by
// (created_at, id), so clients merge by timestamp and de-duplicate by id.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, messageRepo: messageRepo}
}

// ListChats returns the chats the authenticated user participates in.
func (h *ChatHandler) ListChats(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	chats, err := h.chatRepo.ListChats(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChatMessages returns a page of chat history for the user. Cursor
// parameters `before` and `after` are message ids; `limit` caps the page.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	cursor, err := parseCursor(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), chatID, cursor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func parseCursor(c *gin.Context) (repositories.MessageCursor, error) {
	var cursor repositories.MessageCursor

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return cursor, errors.New("invalid limit")
		}
		cursor.Limit = limit
	}
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return cursor, errors.New("invalid before cursor")
		}
		cursor.BeforeID = id
	}
	if raw := c.Query("after"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return cursor, errors.New("invalid after cursor")
		}
		cursor.AfterID = id
	}
	if cursor.BeforeID != 0 && cursor.AfterID != 0 {
		return cursor, errors.New("before and after are mutually exclusive")
	}
	return cursor, nil
}

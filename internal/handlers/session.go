package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/auth"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// Broadcaster fans an event out to the live members of a room.
type Broadcaster interface {
	Broadcast(roomID models.RoomID, event any)
}

// SessionHandler exposes the HTTP trigger for session status changes, the
// counterpart of the AMQP push path for collaborators that call over REST.
type SessionHandler struct {
	sessionRepo repositories.SessionRepository
	hub         Broadcaster
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(sessionRepo repositories.SessionRepository, hub Broadcaster) *SessionHandler {
	return &SessionHandler{sessionRepo: sessionRepo, hub: hub}
}

// GetSession returns a session to one of its two participants.
func (h *SessionHandler) GetSession(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	session, err := h.sessionRepo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not load session"})
		return
	}
	if !session.HasParticipant(identity.UserID) && identity.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session member"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// UpdateSessionStatus records a status change and broadcasts it to the
// session's two members. Admin-only.
func (h *SessionHandler) UpdateSessionStatus(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok || identity.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req struct {
		Status models.SessionStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	session, err := h.sessionRepo.UpdateStatus(c.Request.Context(), sessionID, req.Status)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not update session"})
		return
	}

	h.hub.Broadcast(models.SessionRoomID(session.ID), models.SessionEvent{
		Type:      models.EventSessionUpdate,
		SessionID: session.ID,
		Status:    session.Status,
	})
	c.JSON(http.StatusOK, session)
}

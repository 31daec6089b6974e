package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository reads session membership and records status changes
// pushed by the scheduling service.
type SessionRepository interface {
	IsParticipant(ctx context.Context, sessionID int64, userID int64) (bool, error)
	GetSession(ctx context.Context, sessionID int64) (models.Session, error)
	UpdateStatus(ctx context.Context, sessionID int64, status models.SessionStatus) (models.Session, error)
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// IsParticipant checks whether a user belongs to the session.
func (r *SessionRepo) IsParticipant(ctx context.Context, sessionID int64, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id=$1 AND (patient_id=$2 OR counselor_id=$2))`, sessionID, userID)
	return exists, err
}

// GetSession fetches a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID int64) (models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session, `SELECT id, patient_id, counselor_id, status, created_at FROM sessions WHERE id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return session, err
}

// UpdateStatus records a status change and returns the updated session.
func (r *SessionRepo) UpdateStatus(ctx context.Context, sessionID int64, status models.SessionStatus) (models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session,
		`UPDATE sessions SET status=$2 WHERE id=$1 RETURNING id, patient_id, counselor_id, status, created_at`,
		sessionID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return session, err
}

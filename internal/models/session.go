package models

import "time"

// SessionStatus enumerates the broadcastable states of a counseling session.
type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "scheduled"
	SessionStatusRescheduled SessionStatus = "rescheduled"
	SessionStatusInProgress  SessionStatus = "in_progress"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusCancelled   SessionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusRescheduled, SessionStatusInProgress,
		SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

// Session represents a counseling session between a patient and a counselor.
// Profile and scheduling details live with the booking service; only the
// membership pair and status matter here.
type Session struct {
	ID          int64         `db:"id" json:"id"`
	PatientID   int64         `db:"patient_id" json:"patient_id"`
	CounselorID int64         `db:"counselor_id" json:"counselor_id"`
	Status      SessionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID belongs to the session.
func (s Session) HasParticipant(userID int64) bool {
	return s.PatientID == userID || s.CounselorID == userID
}

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat membership persistence. Chats are provisioned
// by the booking service; this service only reads them.
type ChatRepository interface {
	IsParticipant(ctx context.Context, chatID int64, userID int64) (bool, error)
	GetChat(ctx context.Context, chatID int64) (models.Chat, error)
	ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int64, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (patient_id=$2 OR counselor_id=$2))`, chatID, userID)
	return exists, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, patient_id, counselor_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns the chats the user participates in, newest first.
func (r *ChatRepo) ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	var chats []models.Chat
	query := `SELECT id, patient_id, counselor_id, created_at FROM chats
        WHERE patient_id=$1 OR counselor_id=$1
        ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, err
	}

	result := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		result = append(result, models.ChatSummary{
			ChatID:        chat.ID,
			RoomID:        models.ChatRoomID(chat.ID),
			ParticipantID: chat.OtherParticipant(userID),
			CreatedAt:     chat.CreatedAt,
		})
	}
	return result, nil
}

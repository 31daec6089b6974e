package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotAddressee rejects a read batch containing a message whose
	// receiver is not the caller. The whole batch is left untouched.
	ErrNotAddressee = errors.New("message not addressed to caller")
)

const messageColumns = `id, chat_id, sender_id, receiver_id, content, type, file_url, reply_to_id, is_read, created_at`

// MessageCursor selects a page of room history relative to a message id.
// Zero values mean "latest page".
type MessageCursor struct {
	BeforeID int64
	AfterID  int64
	Limit    int
}

// MessageRepository defines interactions for chat messages. The store assigns
// created_at on insert; (created_at, id) is the room's total order.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID, senderID, receiverID int64, draft models.MessageDraft) (models.Message, error)
	ListMessages(ctx context.Context, chatID int64, cursor MessageCursor) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	MarkMessagesRead(ctx context.Context, userID int64, messageIDs []int64) (map[int64][]int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and returns it with the store-assigned
// id and timestamp.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID, senderID, receiverID int64, draft models.MessageDraft) (models.Message, error) {
	var msg models.Message
	query := `INSERT INTO messages (chat_id, sender_id, receiver_id, content, type, file_url, reply_to_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + messageColumns
	err := r.db.GetContext(ctx, &msg, query, chatID, senderID, receiverID, draft.Content, draft.Type, draft.FileURL, draft.ReplyToID)
	if err != nil {
		return models.Message{}, err
	}
	msg.RoomID = models.ChatRoomID(msg.ChatID)
	return msg, nil
}

// ListMessages returns a page of chat history in ascending (created_at, id)
// order, the same key the live broadcast path uses.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int64, cursor MessageCursor) ([]models.Message, error) {
	limit := cursor.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var msgs []models.Message
	var err error
	switch {
	case cursor.BeforeID != 0:
		query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM messages
            WHERE chat_id=$1 AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id=$2)
            ORDER BY created_at DESC, id DESC LIMIT $3
        ) page ORDER BY created_at ASC, id ASC`
		err = r.db.SelectContext(ctx, &msgs, query, chatID, cursor.BeforeID, limit)
	case cursor.AfterID != 0:
		query := `SELECT ` + messageColumns + ` FROM messages
            WHERE chat_id=$1 AND (created_at, id) > (SELECT created_at, id FROM messages WHERE id=$2)
            ORDER BY created_at ASC, id ASC LIMIT $3`
		err = r.db.SelectContext(ctx, &msgs, query, chatID, cursor.AfterID, limit)
	default:
		query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM messages
            WHERE chat_id=$1
            ORDER BY created_at DESC, id DESC LIMIT $2
        ) page ORDER BY created_at ASC, id ASC`
		err = r.db.SelectContext(ctx, &msgs, query, chatID, limit)
	}
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].RoomID = models.ChatRoomID(msgs[i].ChatID)
	}
	return msgs, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msg.RoomID = models.ChatRoomID(msg.ChatID)
	return msg, nil
}

// MarkMessagesRead flips is_read for the whole batch, or nothing. Every
// message must exist and be addressed to userID. Returns affected message ids
// grouped by chat so the caller can broadcast per room.
func (r *MessageRepo) MarkMessagesRead(ctx context.Context, userID int64, messageIDs []int64) (map[int64][]int64, error) {
	if len(messageIDs) == 0 {
		return map[int64][]int64{}, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	type row struct {
		ID         int64 `db:"id"`
		ChatID     int64 `db:"chat_id"`
		ReceiverID int64 `db:"receiver_id"`
	}
	var rows []row
	query := `SELECT id, chat_id, receiver_id FROM messages WHERE id = ANY($1) FOR UPDATE`
	if err := tx.SelectContext(ctx, &rows, query, pq.Array(messageIDs)); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(rows))
	byChat := make(map[int64][]int64)
	for _, m := range rows {
		if m.ReceiverID != userID {
			return nil, fmt.Errorf("message %d: %w", m.ID, ErrNotAddressee)
		}
		seen[m.ID] = struct{}{}
		byChat[m.ChatID] = append(byChat[m.ChatID], m.ID)
	}
	for _, id := range messageIDs {
		if _, ok := seen[id]; !ok {
			return nil, fmt.Errorf("message %d: %w", id, ErrMessageNotFound)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id = ANY($1)`, pq.Array(messageIDs)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return byChat, nil
}

package realtime

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bibliohub/pkg/models"
)

const defaultHistorySize = 50

// ChatRepo persists chat messages so room history survives restarts.
type ChatRepo struct {
	DB *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{DB: db}
}

func (r *ChatRepo) Save(ctx context.Context, roomID, userID, text string) (*models.ChatMessage, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room_id, user_id, text, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, roomID, userID, text, now)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}

	row := r.DB.QueryRowContext(ctx, `
		SELECT m.id, m.room_id, m.user_id, u.name, m.text, m.sent_at
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = ?
	`, id)

	var msg models.ChatMessage
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.UserName, &msg.Text, &msg.SentAt); err != nil {
		return nil, fmt.Errorf("scan chat message: %w", err)
	}
	return &msg, nil
}

// History returns the most recent messages in chronological order.
func (r *ChatRepo) History(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultHistorySize
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, room_id, user_id, name, text, sent_at FROM (
			SELECT m.id, m.room_id, m.user_id, u.name, m.text, m.sent_at
			FROM chat_messages m
			JOIN users u ON u.id = m.user_id
			WHERE m.room_id = ?
			ORDER BY m.sent_at DESC
			LIMIT ?
		)
		ORDER BY sent_at ASC
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	defer rows.Close()

	out := make([]models.ChatMessage, 0, limit)
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.UserName, &msg.Text, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

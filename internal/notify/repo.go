package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bibliohub/pkg/database"
	"bibliohub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Create persists a notification. It accepts a Queryer so the ledger can
// write the row inside the same transaction as the loan mutation.
func (r *Repo) Create(ctx context.Context, q database.Queryer, n models.Notification) (models.Notification, error) {
	if q == nil {
		q = r.DB
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, message, read, ref_type, ref_id, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
	`, n.ID, n.UserID, n.Type, n.Message, nullable(n.RefType), nullable(n.RefID), n.CreatedAt)
	if err != nil {
		return models.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, type, message, read, ref_type, ref_id, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *Repo) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, type, message, read, ref_type, ref_id, created_at
		FROM notifications
		WHERE user_id = ? AND read = 0
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *Repo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notifications
		SET read = 1
		WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notifications
		SET read = 1
		WHERE user_id = ? AND read = 0
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanNotifications(rows *sql.Rows) ([]models.Notification, error) {
	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var refType, refID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &refType, &refID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.RefType = refType.String
		n.RefID = refID.String
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

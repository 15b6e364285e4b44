package loans

import (
	"context"
	"fmt"
	"time"

	"bibliohub/pkg/models"
)

// SweepReminders emits one reminder notification for every active loan
// that has gone past its due date and has not been reminded yet. Safe to
// run repeatedly; the NOT EXISTS guard keeps reminders one-per-loan.
func (s *Service) SweepReminders(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT l.id, l.user_id, b.title, l.due_at
		FROM loans l
		JOIN books b ON b.id = l.book_id
		WHERE l.status = 'active' AND l.due_at < ?
		AND NOT EXISTS (
			SELECT 1 FROM notifications n
			WHERE n.type = ? AND n.ref_type = 'loan' AND n.ref_id = l.id
		)
	`, now.UTC(), models.NotificationReminder)
	if err != nil {
		return 0, fmt.Errorf("find overdue loans: %w", err)
	}
	defer rows.Close()

	type overdue struct {
		loanID, userID, title string
		dueAt                 time.Time
	}
	var found []overdue
	for rows.Next() {
		var o overdue
		if err := rows.Scan(&o.loanID, &o.userID, &o.title, &o.dueAt); err != nil {
			return 0, fmt.Errorf("scan overdue loan: %w", err)
		}
		found = append(found, o)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("rows err: %w", err)
	}

	sent := 0
	for _, o := range found {
		n, err := s.Dispatcher.Record(ctx, nil, models.Notification{
			UserID:  o.userID,
			Type:    models.NotificationReminder,
			Message: fmt.Sprintf("%q was due on %s, please return it.", o.title, o.dueAt.Format("2006-01-02")),
			RefType: "loan",
			RefID:   o.loanID,
		})
		if err != nil {
			return sent, err
		}
		s.Dispatcher.Push(n)
		sent++
	}
	return sent, nil
}

// RunReminderLoop sweeps on the given interval until ctx is canceled.
func (s *Service) RunReminderLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := s.SweepReminders(ctx, now); err != nil {
				s.Logger.Printf("[loans] reminder sweep failed: %v", err)
			} else if n > 0 {
				s.Logger.Printf("[loans] sent %d overdue reminders", n)
			}
		}
	}
}

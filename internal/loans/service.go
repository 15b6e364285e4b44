package loans

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"bibliohub/internal/catalog"
	"bibliohub/internal/notify"
	"bibliohub/internal/stats"
	"bibliohub/pkg/models"
)

const extensionPeriod = 7 * 24 * time.Hour

// Service owns the loan lifecycle. Every mutation runs as one SQLite
// transaction covering the ledger row, the availability counter, the
// stats snapshot and the notification record; the realtime push happens
// after commit and is never allowed to fail the operation.
type Service struct {
	DB         *sql.DB
	Repo       *Repo
	Books      *catalog.Repo
	Stats      *stats.Repo
	Dispatcher *notify.Dispatcher
	Logger     *log.Logger
}

func NewService(db *sql.DB, repo *Repo, books *catalog.Repo, statsRepo *stats.Repo, dispatcher *notify.Dispatcher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		DB:         db,
		Repo:       repo,
		Books:      books,
		Stats:      statsRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

func (s *Service) CreateLoan(ctx context.Context, userID, bookID string, dueAt time.Time) (*models.LoanDetail, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create loan: %w", err)
	}
	defer tx.Rollback()

	exists, err := s.Books.Exists(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrBookNotFound
	}

	// Conditional decrement is the availability check: zero rows
	// affected means the last copy went to someone else.
	took, err := s.Books.DecrementAvailable(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if !took {
		return nil, ErrUnavailable
	}

	loanID := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO loans (id, book_id, user_id, loaned_at, due_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, loanID, bookID, userID, now, dueAt.UTC(), models.LoanStatusActive)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}

	if err := s.Stats.Recompute(ctx, tx, bookID); err != nil {
		return nil, err
	}

	n, err := s.Dispatcher.Record(ctx, tx, models.Notification{
		UserID:  userID,
		Type:    models.NotificationLoan,
		Message: fmt.Sprintf("Loan registered, due back on %s.", dueAt.Format("2006-01-02")),
		RefType: "loan",
		RefID:   loanID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create loan: %w", err)
	}

	s.Dispatcher.Push(n)
	s.Dispatcher.PushAdmin(map[string]any{
		"type":    "loan_created",
		"loan_id": loanID,
		"book_id": bookID,
		"user_id": userID,
	})

	return s.Repo.GetDetail(ctx, loanID)
}

func (s *Service) ReturnLoan(ctx context.Context, loanID, userID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin return loan: %w", err)
	}
	defer tx.Rollback()

	var bookID string
	err = tx.QueryRowContext(ctx, `
		SELECT book_id FROM loans
		WHERE id = ? AND user_id = ? AND returned_at IS NULL
	`, loanID, userID).Scan(&bookID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrLoanNotFound
		}
		return fmt.Errorf("find open loan: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE loans
		SET returned_at = ?, status = ?
		WHERE id = ?
	`, time.Now().UTC(), models.LoanStatusReturned, loanID)
	if err != nil {
		return fmt.Errorf("close loan: %w", err)
	}

	if err := s.Books.IncrementAvailable(ctx, tx, bookID); err != nil {
		return err
	}

	if err := s.Stats.Recompute(ctx, tx, bookID); err != nil {
		return err
	}

	n, err := s.Dispatcher.Record(ctx, tx, models.Notification{
		UserID:  userID,
		Type:    models.NotificationReturn,
		Message: "Book returned, thank you.",
		RefType: "loan",
		RefID:   loanID,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit return loan: %w", err)
	}

	s.Dispatcher.Push(n)
	return nil
}

// ExtendLoan pushes the due date 7 days past the current due date, not
// 7 days from now, so back-to-back extensions compound. There is no cap
// on the number of extensions.
func (s *Service) ExtendLoan(ctx context.Context, loanID, userID string) (time.Time, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin extend loan: %w", err)
	}
	defer tx.Rollback()

	var dueAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT due_at FROM loans
		WHERE id = ? AND user_id = ? AND returned_at IS NULL
	`, loanID, userID).Scan(&dueAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, ErrLoanNotFound
		}
		return time.Time{}, fmt.Errorf("find open loan: %w", err)
	}

	newDue := dueAt.Add(extensionPeriod)
	_, err = tx.ExecContext(ctx, `
		UPDATE loans SET due_at = ? WHERE id = ?
	`, newDue.UTC(), loanID)
	if err != nil {
		return time.Time{}, fmt.Errorf("extend loan: %w", err)
	}

	n, err := s.Dispatcher.Record(ctx, tx, models.Notification{
		UserID:  userID,
		Type:    models.NotificationExtension,
		Message: fmt.Sprintf("Loan extended, new due date %s.", newDue.Format("2006-01-02")),
		RefType: "loan",
		RefID:   loanID,
	})
	if err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit extend loan: %w", err)
	}

	s.Dispatcher.Push(n)
	return newDue, nil
}

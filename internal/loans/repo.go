package loans

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bibliohub/pkg/models"
)

// Repo serves the read-only projections over the ledger. "Overdue" is
// always computed against the clock at query time; it is never stored.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const loanDetailColumns = `
	l.id, l.book_id, l.user_id, l.loaned_at, l.due_at, l.returned_at, l.status,
	b.title, b.author, COALESCE(b.cover_url, ''), u.name
`

const loanDetailFrom = `
	FROM loans l
	JOIN books b ON b.id = l.book_id
	JOIN users u ON u.id = l.user_id
`

func (r *Repo) GetDetail(ctx context.Context, loanID string) (*models.LoanDetail, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+loanDetailColumns+loanDetailFrom+` WHERE l.id = ?`, loanID)
	d, err := scanLoanDetail(row)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Repo) ListActive(ctx context.Context) ([]models.LoanDetail, error) {
	return r.listWhere(ctx, `WHERE l.status = 'active' ORDER BY l.loaned_at DESC`)
}

func (r *Repo) ListOverdue(ctx context.Context, now time.Time) ([]models.LoanDetail, error) {
	return r.listWhere(ctx, `WHERE l.status = 'active' AND l.due_at < ? ORDER BY l.due_at`, now.UTC())
}

func (r *Repo) ListAll(ctx context.Context) ([]models.LoanDetail, error) {
	return r.listWhere(ctx, `ORDER BY l.loaned_at DESC`)
}

func (r *Repo) UserHistory(ctx context.Context, userID string) ([]models.LoanDetail, error) {
	return r.listWhere(ctx, `WHERE l.user_id = ? ORDER BY l.loaned_at DESC`, userID)
}

func (r *Repo) listWhere(ctx context.Context, clause string, args ...any) ([]models.LoanDetail, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+loanDetailColumns+loanDetailFrom+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	out := []models.LoanDetail{}
	for rows.Next() {
		d, err := scanLoanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoanDetail(row rowScanner) (*models.LoanDetail, error) {
	var d models.LoanDetail
	var returned sql.NullTime
	err := row.Scan(
		&d.ID, &d.BookID, &d.UserID, &d.LoanedAt, &d.DueAt, &returned, &d.Status,
		&d.BookTitle, &d.BookAuthor, &d.BookCover, &d.UserName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("scan loan: %w", err)
	}
	if returned.Valid {
		d.ReturnedAt = &returned.Time
	}
	return &d, nil
}

package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bibliohub/pkg/database"
	"bibliohub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Recompute rebuilds the stats row for one book from the loans and
// reviews tables. It is a full overwrite, so redundant or out-of-order
// calls converge to the same values; callers inside a transaction pass
// their *sql.Tx so the reads see a consistent snapshot.
func (r *Repo) Recompute(ctx context.Context, q database.Queryer, bookID string) error {
	if q == nil {
		q = r.DB
	}

	var loanCount int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans WHERE book_id = ?
	`, bookID).Scan(&loanCount)
	if err != nil {
		return fmt.Errorf("count loans: %w", err)
	}

	// plain column read instead of MAX() so the driver keeps the
	// timestamp type
	var lastLoaned sql.NullTime
	err = q.QueryRowContext(ctx, `
		SELECT loaned_at FROM loans
		WHERE book_id = ?
		ORDER BY loaned_at DESC
		LIMIT 1
	`, bookID).Scan(&lastLoaned)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("last loaned: %w", err)
	}

	var reviewCount int
	var avgRating sql.NullFloat64
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(rating)
		FROM reviews
		WHERE book_id = ?
	`, bookID).Scan(&reviewCount, &avgRating)
	if err != nil {
		return fmt.Errorf("aggregate reviews: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO book_stats (book_id, loan_count, average_rating, review_count, last_loaned_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			loan_count = excluded.loan_count,
			average_rating = excluded.average_rating,
			review_count = excluded.review_count,
			last_loaned_at = excluded.last_loaned_at,
			updated_at = excluded.updated_at
	`, bookID, loanCount, avgRating.Float64, reviewCount, nullTime(lastLoaned), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert book stats: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, bookID string) (*models.BookStats, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT book_id, loan_count, average_rating, review_count, last_loaned_at, updated_at
		FROM book_stats
		WHERE book_id = ?
	`, bookID)

	var s models.BookStats
	var lastLoaned sql.NullTime
	if err := row.Scan(&s.BookID, &s.LoanCount, &s.AverageRating, &s.ReviewCount, &lastLoaned, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan book stats: %w", err)
	}
	if lastLoaned.Valid {
		s.LastLoanedAt = &lastLoaned.Time
	}
	return &s, nil
}

// Dashboard holds the admin overview counters.
type Dashboard struct {
	TotalBooks   int `json:"total_books"`
	ActiveUsers  int `json:"active_users"`
	ActiveLoans  int `json:"active_loans"`
	TotalReviews int `json:"total_reviews"`
}

func (r *Repo) GetDashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM users WHERE active = 1),
			(SELECT COUNT(*) FROM loans WHERE status = 'active'),
			(SELECT COUNT(*) FROM reviews)
	`).Scan(&d.TotalBooks, &d.ActiveUsers, &d.ActiveLoans, &d.TotalReviews)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard counters: %w", err)
	}
	return d, nil
}

// TopBook pairs a stats row with the book title so dashboards do not
// need a second lookup.
type TopBook struct {
	models.BookStats
	Title string `json:"title"`
}

// TopBooks lists the most loaned books for the admin dashboard.
func (r *Repo) TopBooks(ctx context.Context, limit int) ([]TopBook, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT s.book_id, b.title, s.loan_count, s.average_rating, s.review_count, s.last_loaned_at, s.updated_at
		FROM book_stats s
		JOIN books b ON b.id = s.book_id
		ORDER BY s.loan_count DESC, b.title
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top books: %w", err)
	}
	defer rows.Close()

	var out []TopBook
	for rows.Next() {
		var s TopBook
		var lastLoaned sql.NullTime
		if err := rows.Scan(&s.BookID, &s.Title, &s.LoanCount, &s.AverageRating, &s.ReviewCount, &lastLoaned, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan top book: %w", err)
		}
		if lastLoaned.Valid {
			s.LastLoanedAt = &lastLoaned.Time
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func nullTime(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}

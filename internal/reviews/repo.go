package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"bibliohub/internal/catalog"
	"bibliohub/internal/stats"
	"bibliohub/pkg/models"
)

var (
	ErrBookNotFound = errors.New("book not found")
	// ErrDuplicate means the user already reviewed this book.
	ErrDuplicate = errors.New("review already exists for this user and book")
)

type Repo struct {
	DB     *sql.DB
	Books  *catalog.Repo
	Stats  *stats.Repo
	Logger *log.Logger
}

func NewRepo(db *sql.DB, books *catalog.Repo, statsRepo *stats.Repo, logger *log.Logger) *Repo {
	if logger == nil {
		logger = log.Default()
	}
	return &Repo{DB: db, Books: books, Stats: statsRepo, Logger: logger}
}

// Create inserts the review and recomputes the book's stats in one
// transaction. Uniqueness per (user, book) is enforced by the schema;
// the pre-insert lookup only exists to produce a friendly error without
// burning an insert under normal traffic.
func (r *Repo) Create(ctx context.Context, userID, bookID string, rating int, comment string) (*models.Review, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create review: %w", err)
	}
	defer tx.Rollback()

	exists, err := r.Books.Exists(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrBookNotFound
	}

	var one int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM reviews WHERE user_id = ? AND book_id = ?
	`, userID, bookID).Scan(&one)
	if err == nil {
		return nil, ErrDuplicate
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing review: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (id, book_id, user_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, bookID, userID, rating, comment, now)
	if err != nil {
		// two submissions can pass the precheck together; the UNIQUE
		// constraint decides the race
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}

	if err := r.Stats.Recompute(ctx, tx, bookID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create review: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT r.id, r.book_id, r.user_id, u.name, r.rating, r.comment, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.id = ?
	`, id)

	var rv models.Review
	if err := row.Scan(&rv.ID, &rv.BookID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return &rv, nil
}

func (r *Repo) ListByBook(ctx context.Context, bookID string, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.id, r.book_id, r.user_id, u.name, r.rating, r.comment, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = ?
		ORDER BY r.created_at DESC
		LIMIT ? OFFSET ?
	`, bookID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := make([]models.Review, 0, limit)
	for rows.Next() {
		var rv models.Review
		if err := rows.Scan(&rv.ID, &rv.BookID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id, userID string) (bool, error) {
	var bookID string
	err := r.DB.QueryRowContext(ctx, `
		SELECT book_id FROM reviews WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&bookID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("find review: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM reviews WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete review: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if err := r.Stats.Recompute(ctx, nil, bookID); err != nil {
		r.Logger.Printf("[reviews] stats recompute after delete failed: %v", err)
	}
	return true, nil
}

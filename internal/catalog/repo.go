package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
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

// NewBook is the validated input for Create.
type NewBook struct {
	Title       string
	Author      string
	Description string
	Categories  []string
	PublishedAt string
	CoverURL    string
	CoverKey    string
	TotalCopies int
}

func (r *Repo) Create(ctx context.Context, nb NewBook) (*models.Book, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create book: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO books (id, title, author, description, published_at, cover_url, cover_key, total_copies, available_copies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, nb.Title, nb.Author, nb.Description, nullable(nb.PublishedAt), nullable(nb.CoverURL), nullable(nb.CoverKey), nb.TotalCopies, nb.TotalCopies, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	if err := r.setCategories(ctx, tx, id, nb.Categories); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create book: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) setCategories(ctx context.Context, q database.Queryer, bookID string, names []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM book_categories WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("clear book categories: %w", err)
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		catID, err := r.ensureCategory(ctx, q, name)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			INSERT OR IGNORE INTO book_categories (book_id, category_id) VALUES (?, ?)
		`, bookID, catID)
		if err != nil {
			return fmt.Errorf("link category: %w", err)
		}
	}
	return nil
}

func (r *Repo) ensureCategory(ctx context.Context, q database.Queryer, name string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup category: %w", err)
	}

	id = uuid.NewString()
	if _, err := q.ExecContext(ctx, `INSERT INTO categories (id, name) VALUES (?, ?)`, id, name); err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

const bookColumns = `
	b.id, b.title, b.author, b.description, b.published_at, b.cover_url, b.cover_key,
	b.total_copies, b.available_copies, b.created_at, b.updated_at,
	(SELECT GROUP_CONCAT(c.name)
	 FROM book_categories bc JOIN categories c ON c.id = bc.category_id
	 WHERE bc.book_id = b.id)
`

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id = ?`, id)
	b, _, err := scanBook(row)
	return b, err
}

// CoverKey returns the stored asset key for a book's cover, if any.
func (r *Repo) CoverKey(ctx context.Context, id string) (string, error) {
	var key sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT cover_key FROM books WHERE id = ?`, id).Scan(&key)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get cover key: %w", err)
	}
	return key.String, nil
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]models.Book, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books b
		ORDER BY b.title
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out, err := scanBooks(rows, limit)
	return out, total, err
}

// Search matches a substring against title and author.
func (r *Repo) Search(ctx context.Context, query string, limit int) ([]models.Book, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	term := "%" + query + "%"
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books b
		WHERE b.title LIKE ? OR b.author LIKE ?
		ORDER BY b.title
		LIMIT ?
	`, term, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows, limit)
}

// BookUpdate carries a partial update; nil fields are left untouched.
type BookUpdate struct {
	Title       *string
	Author      *string
	Description *string
	Categories  []string
	PublishedAt *string
	CoverURL    *string
	CoverKey    *string
	TotalCopies *int
}

// Update applies the partial update in one transaction. When total
// copies change, available copies shift by the same delta, clamped to
// [0, total].
func (r *Repo) Update(ctx context.Context, id string, upd BookUpdate) (*models.Book, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update book: %w", err)
	}
	defer tx.Rollback()

	var total, available int
	err = tx.QueryRowContext(ctx, `SELECT total_copies, available_copies FROM books WHERE id = ?`, id).Scan(&total, &available)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read book for update: %w", err)
	}

	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Author != nil {
		set = append(set, "author = ?")
		args = append(args, *upd.Author)
	}
	if upd.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.PublishedAt != nil {
		set = append(set, "published_at = ?")
		args = append(args, nullable(*upd.PublishedAt))
	}
	if upd.CoverURL != nil {
		set = append(set, "cover_url = ?", "cover_key = ?")
		args = append(args, nullable(*upd.CoverURL), nullable(deref(upd.CoverKey)))
	}
	if upd.TotalCopies != nil {
		newTotal := *upd.TotalCopies
		newAvailable := available + (newTotal - total)
		if newAvailable < 0 {
			newAvailable = 0
		}
		if newAvailable > newTotal {
			newAvailable = newTotal
		}
		set = append(set, "total_copies = ?", "available_copies = ?")
		args = append(args, newTotal, newAvailable)
	}

	args = append(args, id)
	_, err = tx.ExecContext(ctx, `UPDATE books SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	if upd.Categories != nil {
		if err := r.setCategories(ctx, tx, id, upd.Categories); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update book: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DecrementAvailable takes one copy if any is left. The guard and the
// write are a single conditional UPDATE so concurrent loans can never
// drive the count below zero; zero rows affected means no copies left.
func (r *Repo) DecrementAvailable(ctx context.Context, q database.Queryer, id string) (bool, error) {
	if q == nil {
		q = r.DB
	}
	res, err := q.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies - 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_copies > 0
	`, id)
	if err != nil {
		return false, fmt.Errorf("decrement available: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement available rows: %w", err)
	}
	return n > 0, nil
}

// IncrementAvailable returns one copy, capped at total copies.
func (r *Repo) IncrementAvailable(ctx context.Context, q database.Queryer, id string) error {
	if q == nil {
		q = r.DB
	}
	_, err := q.ExecContext(ctx, `
		UPDATE books
		SET available_copies = MIN(available_copies + 1, total_copies), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("increment available: %w", err)
	}
	return nil
}

// Exists reports whether the book is present, usable inside a
// caller-owned transaction.
func (r *Repo) Exists(ctx context.Context, q database.Queryer, id string) (bool, error) {
	if q == nil {
		q = r.DB
	}
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM books WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("book exists: %w", err)
	}
	return true, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	id, err := r.ensureCategory(ctx, r.DB, name)
	if err != nil {
		return nil, err
	}
	return &models.Category{ID: id, Name: name}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*models.Book, string, error) {
	var (
		b           models.Book
		description sql.NullString
		publishedAt sql.NullString
		coverURL    sql.NullString
		coverKey    sql.NullString
		categories  sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &description, &publishedAt, &coverURL, &coverKey,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt, &categories,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("scan book: %w", err)
	}

	b.Description = description.String
	b.PublishedAt = publishedAt.String
	b.CoverURL = coverURL.String
	b.Disponible = b.AvailableCopies > 0
	if categories.Valid && categories.String != "" {
		b.Categories = strings.Split(categories.String, ",")
	} else {
		b.Categories = []string{}
	}
	return &b, coverKey.String, nil
}

func scanBooks(rows *sql.Rows, capacity int) ([]models.Book, error) {
	out := make([]models.Book, 0, capacity)
	for rows.Next() {
		b, _, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
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

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bibliohub/pkg/database"
)

func newExportCmd() *cobra.Command {
	var outDir string
	var entities []string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump catalog, loans, reviews, users and categories to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db := database.MustOpen(database.DefaultConfig())
			defer db.Close()
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("db migrate failed: %w", err)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			want := map[string]bool{}
			for _, e := range entities {
				want[strings.TrimSpace(strings.ToLower(e))] = true
			}
			all := len(want) == 0 || want["all"]

			type job struct {
				name string
				run  func(context.Context, *sql.DB, string) error
			}
			jobs := []job{
				{"books", exportBooks},
				{"loans", exportLoans},
				{"reviews", exportReviews},
				{"users", exportUsers},
				{"categories", exportCategories},
			}
			for _, j := range jobs {
				if !all && !want[j.name] {
					continue
				}
				path := filepath.Join(outDir, j.name+".csv")
				if err := j.run(ctx, db, path); err != nil {
					return fmt.Errorf("export %s: %w", j.name, err)
				}
				cmd.Printf("exported %s to %s\n", j.name, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "data/export", "output directory for CSV files")
	cmd.Flags().StringSliceVar(&entities, "entities", nil, "entities to export (books,loans,reviews,users,categories); default all")
	return cmd
}

func writeCSV(path string, header []string, fill func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := fill(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func exportBooks(ctx context.Context, db *sql.DB, path string) error {
	return writeCSV(path, []string{"id", "title", "author", "description", "published_at", "cover_url", "total_copies", "available_copies", "categories"}, func(w *csv.Writer) error {
		rows, err := db.QueryContext(ctx, `
			SELECT b.id, b.title, b.author, b.description, b.published_at, b.cover_url,
				b.total_copies, b.available_copies,
				(SELECT GROUP_CONCAT(c.name)
				 FROM book_categories bc JOIN categories c ON c.id = bc.category_id
				 WHERE bc.book_id = b.id)
			FROM books b
			ORDER BY b.title
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id, title, author, description   string
				publishedAt, coverURL, categories sql.NullString
				total, available                 int
			)
			if err := rows.Scan(&id, &title, &author, &description, &publishedAt, &coverURL, &total, &available, &categories); err != nil {
				return err
			}
			if err := w.Write([]string{
				id, title, author, description,
				publishedAt.String, coverURL.String,
				strconv.Itoa(total), strconv.Itoa(available),
				categories.String,
			}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

func exportLoans(ctx context.Context, db *sql.DB, path string) error {
	return writeCSV(path, []string{"id", "book_id", "user_id", "book_title", "user_name", "loaned_at", "due_at", "returned_at", "status"}, func(w *csv.Writer) error {
		rows, err := db.QueryContext(ctx, `
			SELECT l.id, l.book_id, l.user_id, b.title, u.name, l.loaned_at, l.due_at, l.returned_at, l.status
			FROM loans l
			JOIN books b ON b.id = l.book_id
			JOIN users u ON u.id = l.user_id
			ORDER BY l.loaned_at DESC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id, bookID, userID, title, name, status string
				loanedAt, dueAt                         time.Time
				returnedAt                              sql.NullTime
			)
			if err := rows.Scan(&id, &bookID, &userID, &title, &name, &loanedAt, &dueAt, &returnedAt, &status); err != nil {
				return err
			}
			returned := ""
			if returnedAt.Valid {
				returned = returnedAt.Time.Format(time.RFC3339)
			}
			if err := w.Write([]string{
				id, bookID, userID, title, name,
				loanedAt.Format(time.RFC3339), dueAt.Format(time.RFC3339),
				returned, status,
			}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

func exportReviews(ctx context.Context, db *sql.DB, path string) error {
	return writeCSV(path, []string{"id", "book_id", "user_id", "rating", "comment", "created_at"}, func(w *csv.Writer) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, book_id, user_id, rating, comment, created_at
			FROM reviews
			ORDER BY created_at DESC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id, bookID, userID, comment string
				rating                      int
				createdAt                   time.Time
			)
			if err := rows.Scan(&id, &bookID, &userID, &rating, &comment, &createdAt); err != nil {
				return err
			}
			if err := w.Write([]string{id, bookID, userID, strconv.Itoa(rating), comment, createdAt.Format(time.RFC3339)}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// exportUsers deliberately leaves out password hashes.
func exportUsers(ctx context.Context, db *sql.DB, path string) error {
	return writeCSV(path, []string{"id", "name", "email", "role", "created_at"}, func(w *csv.Writer) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, name, email, role, created_at
			FROM users
			ORDER BY created_at
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id, name, email, role string
			var createdAt time.Time
			if err := rows.Scan(&id, &name, &email, &role, &createdAt); err != nil {
				return err
			}
			if err := w.Write([]string{id, name, email, role, createdAt.Format(time.RFC3339)}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

func exportCategories(ctx context.Context, db *sql.DB, path string) error {
	return writeCSV(path, []string{"id", "name"}, func(w *csv.Writer) error {
		rows, err := db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id, name string
			if err := rows.Scan(&id, &name); err != nil {
				return err
			}
			if err := w.Write([]string{id, name}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bibliohub/internal/catalog"
	"bibliohub/pkg/database"
)

func newImportCmd() *cobra.Command {
	var path string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load books from a CSV dump into the catalog",
		Long:  "Reads a books.csv produced by export (or any file with the same header) and creates the books through the regular catalog path, so categories are linked and availability starts at full stock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			db := database.MustOpen(database.DefaultConfig())
			defer db.Close()
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("db migrate failed: %w", err)
			}
			repo := catalog.NewRepo(db)

			r := csv.NewReader(f)
			r.FieldsPerRecord = -1

			header, err := r.Read()
			if err != nil {
				return fmt.Errorf("read header: %w", err)
			}
			col := map[string]int{}
			for i, name := range header {
				col[strings.TrimSpace(strings.ToLower(name))] = i
			}
			for _, required := range []string{"title", "author"} {
				if _, ok := col[required]; !ok {
					return fmt.Errorf("missing column %q in %s", required, path)
				}
			}

			field := func(rec []string, name string) string {
				i, ok := col[name]
				if !ok || i >= len(rec) {
					return ""
				}
				return strings.TrimSpace(rec[i])
			}

			imported, skipped := 0, 0
			for line := 2; ; line++ {
				rec, err := r.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}

				title := field(rec, "title")
				author := field(rec, "author")
				if title == "" || author == "" {
					cmd.Printf("line %d: skipped, title and author are required\n", line)
					skipped++
					continue
				}

				total := 1
				if raw := field(rec, "total_copies"); raw != "" {
					n, err := strconv.Atoi(raw)
					if err != nil || n < 1 {
						cmd.Printf("line %d: skipped, bad total_copies %q\n", line, raw)
						skipped++
						continue
					}
					total = n
				}

				var cats []string
				for _, c := range strings.Split(field(rec, "categories"), ",") {
					if c = strings.TrimSpace(c); c != "" {
						cats = append(cats, c)
					}
				}

				if dryRun {
					cmd.Printf("line %d: would import %q by %s (%d copies)\n", line, title, author, total)
					imported++
					continue
				}

				_, err = repo.Create(ctx, catalog.NewBook{
					Title:       title,
					Author:      author,
					Description: field(rec, "description"),
					Categories:  cats,
					PublishedAt: field(rec, "published_at"),
					CoverURL:    field(rec, "cover_url"),
					TotalCopies: total,
				})
				if err != nil {
					return fmt.Errorf("line %d: import %q: %w", line, title, err)
				}
				imported++
			}

			cmd.Printf("imported %d books, skipped %d\n", imported, skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "file", "data/export/books.csv", "CSV file to import")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing anything")
	return cmd
}

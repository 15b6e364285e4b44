package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bibliohub/internal/stats"
	"bibliohub/pkg/database"
)

func newStatsCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard counters and the most-loaned books",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			db := database.MustOpen(database.DefaultConfig())
			defer db.Close()
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("db migrate failed: %w", err)
			}
			repo := stats.NewRepo(db)

			d, err := repo.GetDashboard(ctx)
			if err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			cmd.Printf("books:        %d\n", d.TotalBooks)
			cmd.Printf("active users: %d\n", d.ActiveUsers)
			cmd.Printf("active loans: %d\n", d.ActiveLoans)
			cmd.Printf("reviews:      %d\n", d.TotalReviews)

			if top <= 0 {
				return nil
			}
			books, err := repo.TopBooks(ctx, top)
			if err != nil {
				return fmt.Errorf("top books: %w", err)
			}
			if len(books) == 0 {
				return nil
			}
			cmd.Println("\nmost loaned:")
			for i, b := range books {
				cmd.Printf("%2d. %s (%d loans, avg rating %.2f)\n", i+1, b.Title, b.LoanCount, b.AverageRating)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 5, "number of most-loaned books to list (0 to skip)")
	return cmd
}

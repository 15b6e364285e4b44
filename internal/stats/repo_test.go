package stats

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliohub/pkg/database"
)

func newTestRepo(t *testing.T) (*Repo, *sql.DB) {
	t.Helper()
	db, err := database.OpenForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepo(db), db
}

func seed(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
}

func TestRecomputeAggregatesLoansAndReviews(t *testing.T) {
	repo, db := newTestRepo(t)
	seed(t, db,
		`INSERT INTO users (id, name, email, password_hash) VALUES
			('u1', 'Ana', 'a@x.com', 'h'), ('u2', 'Luis', 'b@x.com', 'h'), ('u3', 'Eva', 'c@x.com', 'h')`,
		`INSERT INTO books (id, title, author, total_copies, available_copies)
			VALUES ('b1', 'Ficciones', 'Borges', 3, 1)`,
		`INSERT INTO loans (id, book_id, user_id, due_at) VALUES
			('l1', 'b1', 'u1', '2026-01-01 00:00:00'),
			('l2', 'b1', 'u2', '2026-02-01 00:00:00')`,
		`INSERT INTO reviews (id, book_id, user_id, rating, comment) VALUES
			('r1', 'b1', 'u1', 2, 'meh'),
			('r2', 'b1', 'u2', 4, 'good'),
			('r3', 'b1', 'u3', 5, 'great')`,
	)

	require.NoError(t, repo.Recompute(context.Background(), nil, "b1"))

	s, err := repo.Get(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.LoanCount)
	assert.Equal(t, 3, s.ReviewCount)
	assert.InDelta(t, 11.0/3.0, s.AverageRating, 0.0001)
	require.NotNil(t, s.LastLoanedAt)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	repo, db := newTestRepo(t)
	seed(t, db,
		`INSERT INTO users (id, name, email, password_hash) VALUES ('u1', 'Ana', 'a@x.com', 'h')`,
		`INSERT INTO books (id, title, author, total_copies, available_copies)
			VALUES ('b1', 'Sur', 'X', 1, 0)`,
		`INSERT INTO loans (id, book_id, user_id, due_at) VALUES ('l1', 'b1', 'u1', '2026-01-01 00:00:00')`,
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Recompute(context.Background(), nil, "b1"))
	}

	s, err := repo.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.LoanCount)
	assert.Equal(t, 0, s.ReviewCount)
	assert.Zero(t, s.AverageRating)
}

func TestGetMissingStats(t *testing.T) {
	repo, _ := newTestRepo(t)
	s, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestDashboardCounters(t *testing.T) {
	repo, db := newTestRepo(t)
	seed(t, db,
		`INSERT INTO users (id, name, email, password_hash, active) VALUES
			('u1', 'Ana', 'a@x.com', 'h', 1),
			('u2', 'Luis', 'b@x.com', 'h', 0)`,
		`INSERT INTO books (id, title, author, total_copies, available_copies) VALUES
			('b1', 'One', 'X', 1, 0), ('b2', 'Two', 'Y', 1, 1)`,
		`INSERT INTO loans (id, book_id, user_id, due_at, status, returned_at) VALUES
			('l1', 'b1', 'u1', '2026-01-01 00:00:00', 'active', NULL),
			('l2', 'b2', 'u1', '2026-01-01 00:00:00', 'returned', '2026-01-02 00:00:00')`,
		`INSERT INTO reviews (id, book_id, user_id, rating, comment)
			VALUES ('r1', 'b1', 'u1', 5, 'great')`,
	)

	d, err := repo.GetDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalBooks)
	assert.Equal(t, 1, d.ActiveUsers)
	assert.Equal(t, 1, d.ActiveLoans)
	assert.Equal(t, 1, d.TotalReviews)
}

func TestTopBooksOrderedByLoanCount(t *testing.T) {
	repo, db := newTestRepo(t)
	seed(t, db,
		`INSERT INTO users (id, name, email, password_hash) VALUES ('u1', 'Ana', 'a@x.com', 'h')`,
		`INSERT INTO books (id, title, author, total_copies, available_copies) VALUES
			('b1', 'Quiet', 'X', 1, 1), ('b2', 'Popular', 'Y', 3, 0)`,
		`INSERT INTO loans (id, book_id, user_id, due_at) VALUES
			('l1', 'b2', 'u1', '2026-01-01 00:00:00'),
			('l2', 'b2', 'u1', '2026-02-01 00:00:00'),
			('l3', 'b1', 'u1', '2026-03-01 00:00:00')`,
	)
	require.NoError(t, repo.Recompute(context.Background(), nil, "b1"))
	require.NoError(t, repo.Recompute(context.Background(), nil, "b2"))

	top, err := repo.TopBooks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Popular", top[0].Title)
	assert.Equal(t, 2, top[0].LoanCount)
	assert.Equal(t, "Quiet", top[1].Title)
}

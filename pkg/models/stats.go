package models

import "time"

// BookStats is a materialized view over loans and reviews. It is rebuilt
// wholesale after every loan or review creation and is safe to recompute
// at any time.
type BookStats struct {
	BookID        string     `json:"book_id"`
	LoanCount     int        `json:"loan_count"`
	AverageRating float64    `json:"average_rating"`
	ReviewCount   int        `json:"review_count"`
	LastLoanedAt  *time.Time `json:"last_loaned_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

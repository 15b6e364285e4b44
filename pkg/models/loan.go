package models

import "time"

const (
	LoanStatusActive   = "active"
	LoanStatusReturned = "returned"
)

type Loan struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	UserID     string     `json:"user_id"`
	LoanedAt   time.Time  `json:"loaned_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Status     string     `json:"status"`
}

// Overdue reports whether the loan is still open past its due date.
// It is always computed at query time, never persisted as a status.
func (l Loan) Overdue(now time.Time) bool {
	return l.Status == LoanStatusActive && l.ReturnedAt == nil && l.DueAt.Before(now)
}

// LoanDetail is a loan row joined with book and user columns for listings.
type LoanDetail struct {
	Loan
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	BookCover  string `json:"book_cover,omitempty"`
	UserName   string `json:"user_name,omitempty"`
}

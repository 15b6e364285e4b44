package loans

import "errors"

var (
	// ErrBookNotFound means the requested book does not exist.
	ErrBookNotFound = errors.New("book not found")
	// ErrLoanNotFound means no open loan matches the (loan, user) pair.
	ErrLoanNotFound = errors.New("loan not found or already returned")
	// ErrUnavailable means the book has no copies left.
	ErrUnavailable = errors.New("book not available")
)

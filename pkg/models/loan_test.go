package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoanOverdue(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	open := Loan{Status: LoanStatusActive, DueAt: yesterday}
	assert.True(t, open.Overdue(now))

	notYet := Loan{Status: LoanStatusActive, DueAt: tomorrow}
	assert.False(t, notYet.Overdue(now))

	// a returned loan can never be overdue, however late it was
	closed := Loan{Status: LoanStatusReturned, DueAt: yesterday, ReturnedAt: &now}
	assert.False(t, closed.Overdue(now))
}

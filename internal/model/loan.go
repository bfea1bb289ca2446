package model

import "time"

// Loan records one copy of a book lent to a borrower.
// A loan is open while ActualReturnDate is nil.
type Loan struct {
	ID                 int64      `json:"id"`
	BookID             int64      `json:"book_id"`
	UserID             int64      `json:"user_id"`
	LoanDate           time.Time  `json:"loan_date"`
	ExpectedReturnDate time.Time  `json:"expected_return_date"`
	ActualReturnDate   *time.Time `json:"actual_return_date,omitempty"`
	Fine               int        `json:"fine"`
	ProcessedBy        *int64     `json:"processed_by,omitempty"`
	ReturnedBy         *int64     `json:"returned_by,omitempty"`

	// AccruedFine is what an open loan would be charged if returned now.
	AccruedFine int `json:"accrued_fine,omitempty"`

	// Joined fields (not always populated).
	BookTitle string `json:"book_title,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Loan states.
const (
	LoanStatusOpen   = "open"
	LoanStatusClosed = "closed"
)

// Status returns the lifecycle state of the loan.
func (l *Loan) Status() string {
	if l.ActualReturnDate == nil {
		return LoanStatusOpen
	}
	return LoanStatusClosed
}

// IsOpen reports whether the book has not been returned yet.
func (l *Loan) IsOpen() bool {
	return l.ActualReturnDate == nil
}

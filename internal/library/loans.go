package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/fine"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// CheckoutRequest asks to lend one copy of a book to a borrower.
type CheckoutRequest struct {
	BookID     int64  `json:"book_id"`
	BorrowerID int64  `json:"user_id"`
	DueDate    string `json:"due_date"`
}

// ReturnRequest closes a loan. An empty ReturnDate means now; a date is
// combined with the current time of day.
type ReturnRequest struct {
	LoanID     int64  `json:"-"`
	ReturnDate string `json:"return_date,omitempty"`
}

// Checkout lends a copy of a book to a borrower until the due date.
// Nothing is written unless every check passes.
func (s *Service) Checkout(ctx context.Context, actor model.Actor, req CheckoutRequest) (*model.Loan, error) {
	if err := model.Authorize(actor.Role, model.CapCheckout); err != nil {
		return nil, err
	}

	now := s.now()
	due, err := parseDate(req.DueDate, now.Location())
	if err != nil {
		return nil, err
	}

	today := midnight(now)
	if !due.After(today) {
		return nil, fmt.Errorf("%w: due date %s must be after today", model.ErrInvalidInput, req.DueDate)
	}
	if due.After(today.AddDate(0, 0, MaxLoanDays)) {
		return nil, fmt.Errorf("%w: due date %s is more than %d days away", model.ErrInvalidInput, req.DueDate, MaxLoanDays)
	}

	book, err := store.GetBook(ctx, s.DB, req.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, notFound("book", req.BookID)
	}

	borrower, err := store.GetUser(ctx, s.DB, req.BorrowerID)
	if err != nil {
		return nil, err
	}
	if borrower == nil || borrower.DeletedAt != nil {
		return nil, notFound("user", req.BorrowerID)
	}

	return store.CheckoutLoan(ctx, s.DB, book.ID, borrower.ID, actor.UserID, now, due)
}

// Return closes an open loan, puts the copy back on the shelf and fixes
// the fine. Returning a closed loan changes nothing: the stored loan comes
// back with model.ErrAlreadyClosed.
func (s *Service) Return(ctx context.Context, actor model.Actor, req ReturnRequest) (*model.Loan, error) {
	if err := model.Authorize(actor.Role, model.CapReturn); err != nil {
		return nil, err
	}

	now := s.now()
	returnedAt := now
	if req.ReturnDate != "" {
		d, err := parseDate(req.ReturnDate, now.Location())
		if err != nil {
			return nil, err
		}
		returnedAt = time.Date(d.Year(), d.Month(), d.Day(),
			now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
	}

	loan, err := store.GetLoan(ctx, s.DB, req.LoanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, notFound("loan", req.LoanID)
	}
	if !loan.IsOpen() {
		return loan, fmt.Errorf("%w: loan %d", model.ErrAlreadyClosed, loan.ID)
	}

	closed, err := store.ReturnLoan(ctx, s.DB, loan.ID, actor.UserID, returnedAt)
	if errors.Is(err, model.ErrAlreadyClosed) {
		// Lost a race with another return; report what that one stored.
		stored, getErr := store.GetLoan(ctx, s.DB, loan.ID)
		if getErr != nil {
			return nil, getErr
		}
		return stored, err
	}
	if err != nil {
		return nil, err
	}
	if closed == nil {
		return nil, notFound("loan", req.LoanID)
	}
	return closed, nil
}

// Loan returns one loan. Patrons may only see their own.
func (s *Service) Loan(ctx context.Context, actor model.Actor, id int64) (*model.Loan, error) {
	if err := model.Authorize(actor.Role, model.CapBrowse); err != nil {
		return nil, err
	}

	loan, err := store.GetLoan(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, notFound("loan", id)
	}
	if err := model.AuthorizeSelf(actor, loan.UserID, model.CapViewAnyLoans); err != nil {
		return nil, err
	}

	s.preview(loan)
	return loan, nil
}

// LoansFor returns a borrower's loans, newest first. Patrons may only list
// their own.
func (s *Service) LoansFor(ctx context.Context, actor model.Actor, borrowerID int64, openOnly bool) ([]model.Loan, error) {
	if err := model.AuthorizeSelf(actor, borrowerID, model.CapViewAnyLoans); err != nil {
		return nil, err
	}

	borrower, err := store.GetUser(ctx, s.DB, borrowerID)
	if err != nil {
		return nil, err
	}
	if borrower == nil {
		return nil, notFound("user", borrowerID)
	}

	loans, err := store.ListLoans(ctx, s.DB, borrowerID, openOnly)
	if err != nil {
		return nil, err
	}
	for i := range loans {
		s.preview(&loans[i])
	}
	return loans, nil
}

// preview fills in the fine an open loan has accrued so far.
func (s *Service) preview(loan *model.Loan) {
	if loan.IsOpen() {
		loan.AccruedFine = fine.Preview(loan.LoanDate, s.now(), loan.ExpectedReturnDate)
	}
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/fine"
	"github.com/erazemk/knjiznica/internal/model"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const loanColumns = `l.id, l.book_id, l.user_id, l.loan_date, l.expected_return_date,
	l.actual_return_date, l.fine, l.processed_by, l.returned_by, b.title, u.username`

const loanJoins = `FROM loans l
	JOIN books b ON b.id = l.book_id
	JOIN users u ON u.id = l.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*model.Loan, error) {
	l := &model.Loan{}
	err := row.Scan(&l.ID, &l.BookID, &l.UserID, &l.LoanDate, &l.ExpectedReturnDate,
		&l.ActualReturnDate, &l.Fine, &l.ProcessedBy, &l.ReturnedBy, &l.BookTitle, &l.Username)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func getLoan(ctx context.Context, q queryer, id int64) (*model.Loan, error) {
	l, err := scanLoan(q.QueryRowContext(ctx,
		`SELECT `+loanColumns+` `+loanJoins+` WHERE l.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}
	return l, nil
}

// GetLoan returns a loan by ID with the book title and borrower username.
func GetLoan(ctx context.Context, db *sql.DB, id int64) (*model.Loan, error) {
	return getLoan(ctx, db, id)
}

// CheckoutLoan takes one copy of a book off the shelf and opens a loan for
// userID in a single transaction. The stock check is the conditional
// decrement itself, so concurrent checkouts of the last copy cannot both win.
func CheckoutLoan(ctx context.Context, db *sql.DB, bookID, userID, processedBy int64, loanDate, due time.Time) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE books SET stock = stock - 1 WHERE id = ? AND stock > 0`, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("decrementing stock: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking stock update: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: book %d has no copies left", model.ErrOutOfStock, bookID)
	}

	result, err = tx.ExecContext(ctx,
		`INSERT INTO loans (book_id, user_id, loan_date, expected_return_date, processed_by)
		 VALUES (?, ?, ?, ?, ?)`,
		bookID, userID, loanDate, due, processedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}

	loan, err := getLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return loan, nil
}

// ReturnLoan closes an open loan at returnedAt: the copy goes back on the
// shelf and the fine is fixed. A loan that is already closed is returned
// unchanged together with model.ErrAlreadyClosed. Returns nil, nil if the
// loan doesn't exist.
func ReturnLoan(ctx context.Context, db *sql.DB, id, returnedBy int64, returnedAt time.Time) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := getLoan(ctx, tx, id)
	if err != nil || loan == nil {
		return nil, err
	}
	if !loan.IsOpen() {
		return loan, fmt.Errorf("%w: loan %d", model.ErrAlreadyClosed, id)
	}

	amount := fine.Compute(loan.LoanDate, returnedAt, loan.ExpectedReturnDate)

	result, err := tx.ExecContext(ctx,
		`UPDATE loans SET actual_return_date = ?, fine = ?, returned_by = ?
		 WHERE id = ? AND actual_return_date IS NULL`,
		returnedAt, amount, returnedBy, id,
	)
	if err != nil {
		return nil, fmt.Errorf("closing loan: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("checking loan update: %w", err)
	} else if n == 0 {
		return loan, fmt.Errorf("%w: loan %d", model.ErrAlreadyClosed, id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE books SET stock = stock + 1 WHERE id = ?`, loan.BookID,
	); err != nil {
		return nil, fmt.Errorf("incrementing stock: %w", err)
	}

	closed, err := getLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return closed, nil
}

// ListLoans returns a borrower's loans, newest first. With openOnly set
// only books not yet returned are included. Loan dates carry their UTC
// offset, so they are ordered as instants rather than as text.
func ListLoans(ctx context.Context, db *sql.DB, userID int64, openOnly bool) ([]model.Loan, error) {
	query := `SELECT ` + loanColumns + ` ` + loanJoins + ` WHERE l.user_id = ?`
	if openOnly {
		query += ` AND l.actual_return_date IS NULL`
	}
	query += ` ORDER BY julianday(l.loan_date) DESC, l.id DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	loans := []model.Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

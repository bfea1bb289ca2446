package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// now is the fixed wall clock used by loan tests.
var now = time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC)

func mustBook(t *testing.T, database *sql.DB, title, author, category string, stock int) *model.Book {
	t.Helper()
	book, _, err := ReceiveBook(context.Background(), database, title, author, category, stock)
	if err != nil {
		t.Fatalf("ReceiveBook(%q): %v", title, err)
	}
	return book
}

func mustUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	user, err := CreateUser(context.Background(), database, username, "hash", role)
	if err != nil {
		t.Fatalf("CreateUser(%q): %v", username, err)
	}
	return user
}

func mustCheckout(t *testing.T, database *sql.DB, bookID, userID, staffID int64, at time.Time) *model.Loan {
	t.Helper()
	due := time.Date(at.Year(), at.Month(), at.Day()+14, 0, 0, 0, 0, at.Location())
	loan, err := CheckoutLoan(context.Background(), database, bookID, userID, staffID, at, due)
	if err != nil {
		t.Fatalf("CheckoutLoan: %v", err)
	}
	return loan
}

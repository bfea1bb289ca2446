package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

type fixture struct {
	svc       *Service
	ctx       context.Context
	clock     time.Time
	admin     model.Actor
	librarian model.Actor
	patron    model.Actor
	other     model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	f := &fixture{
		ctx:   ctx,
		clock: time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC),
	}
	f.svc = &Service{DB: database, Now: func() time.Time { return f.clock }}

	actor := func(username, role string) model.Actor {
		u, err := store.CreateUser(ctx, database, username, "hash", role)
		require.NoError(t, err)
		return model.Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
	}
	f.admin = actor("admin", model.RoleAdmin)
	f.librarian = actor("biblio", model.RoleLibrarian)
	f.patron = actor("ana", model.RolePatron)
	f.other = actor("bob", model.RolePatron)

	return f
}

func (f *fixture) book(t *testing.T, title, category string, stock int) *model.Book {
	t.Helper()
	b, _, err := f.svc.ReceiveBook(f.ctx, f.librarian, BookInput{
		Title: title, Author: "Author of " + title, Category: category, Stock: stock,
	})
	require.NoError(t, err)
	return b
}

// date formats the clock's day shifted by days.
func (f *fixture) date(days int) string {
	return f.clock.AddDate(0, 0, days).Format(DateLayout)
}

func (f *fixture) checkout(t *testing.T, bookID int64, borrower model.Actor, days int) *model.Loan {
	t.Helper()
	loan, err := f.svc.Checkout(f.ctx, f.librarian, CheckoutRequest{
		BookID: bookID, BorrowerID: borrower.UserID, DueDate: f.date(days),
	})
	require.NoError(t, err)
	return loan
}

func intPtr(v int) *int { return &v }

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/knjiznica/internal/model"
)

// RecommendationLimit caps how many books RecommendBooks returns.
const RecommendationLimit = 3

// TopBooks returns the n most borrowed books, ties by ascending book ID.
// Books that were never lent are left out.
func TopBooks(ctx context.Context, db *sql.DB, n int) ([]model.BookCount, error) {
	total := goqu.COUNT(goqu.I("l.id"))
	query, args, err := from(goqu.T("books").As("b")).
		Select(
			goqu.I("b.id").As("id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.author").As("author"),
			goqu.I("b.category").As("category"),
			goqu.I("b.stock").As("stock"),
			goqu.I("b.created_at").As("created_at"),
			total.As("total"),
		).
		Join(goqu.T("loans").As("l"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
		GroupBy(goqu.I("b.id")).
		Order(total.Desc(), goqu.I("b.id").Asc()).
		Limit(uint(n)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building top books query: %w", err)
	}

	books := []model.BookCount{}
	if err := scanner(db).SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("querying top books: %w", err)
	}
	return books, nil
}

// TopGenres returns the n categories with the most loans, ties by name.
func TopGenres(ctx context.Context, db *sql.DB, n int) ([]model.GenreCount, error) {
	total := goqu.COUNT(goqu.I("l.id"))
	query, args, err := from(goqu.T("books").As("b")).
		Select(goqu.I("b.category").As("category"), total.As("total")).
		Join(goqu.T("loans").As("l"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
		GroupBy(goqu.I("b.category")).
		Order(total.Desc(), goqu.I("b.category").Asc()).
		Limit(uint(n)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building top genres query: %w", err)
	}

	genres := []model.GenreCount{}
	if err := scanner(db).SelectContext(ctx, &genres, query, args...); err != nil {
		return nil, fmt.Errorf("querying top genres: %w", err)
	}
	return genres, nil
}

// TopBorrowers returns the n users with the most loans, ties by user ID.
// Deleted users still count; their history is kept.
func TopBorrowers(ctx context.Context, db *sql.DB, n int) ([]model.BorrowerCount, error) {
	total := goqu.COUNT(goqu.I("l.id"))
	query, args, err := from(goqu.T("users").As("u")).
		Select(goqu.I("u.id").As("user_id"), goqu.I("u.username").As("username"), total.As("total")).
		Join(goqu.T("loans").As("l"), goqu.On(goqu.I("l.user_id").Eq(goqu.I("u.id")))).
		GroupBy(goqu.I("u.id")).
		Order(total.Desc(), goqu.I("u.id").Asc()).
		Limit(uint(n)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building top borrowers query: %w", err)
	}

	borrowers := []model.BorrowerCount{}
	if err := scanner(db).SelectContext(ctx, &borrowers, query, args...); err != nil {
		return nil, fmt.Errorf("querying top borrowers: %w", err)
	}
	return borrowers, nil
}

// RecommendBooks suggests in-stock books from the category of the user's
// most recent loan, excluding the book of that loan. Users without loans
// get an empty list.
func RecommendBooks(ctx context.Context, db *sql.DB, userID int64) ([]model.Book, error) {
	var last struct {
		BookID   int64  `db:"book_id"`
		Category string `db:"category"`
	}

	query, args, err := from(goqu.T("loans").As("l")).
		Select(goqu.I("l.book_id").As("book_id"), goqu.I("b.category").As("category")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Where(goqu.I("l.user_id").Eq(userID)).
		Order(goqu.L("julianday(l.loan_date)").Desc(), goqu.I("l.id").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building last loan query: %w", err)
	}

	books := []model.Book{}
	err = scanner(db).GetContext(ctx, &last, query, args...)
	if err == sql.ErrNoRows {
		return books, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting last loan: %w", err)
	}

	query, args, err = from("books").
		Select("id", "title", "author", "category", "stock", "created_at").
		Where(
			goqu.C("category").Eq(last.Category),
			goqu.C("id").Neq(last.BookID),
			goqu.C("stock").Gt(0),
		).
		Order(goqu.C("id").Asc()).
		Limit(RecommendationLimit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building recommendations query: %w", err)
	}

	if err := scanner(db).SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	return books, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/erazemk/knjiznica/internal/model"
)

// GetBook returns a book by ID.
func GetBook(ctx context.Context, db *sql.DB, id int64) (*model.Book, error) {
	b := &model.Book{}
	err := db.QueryRowContext(ctx,
		`SELECT id, title, author, category, stock, created_at FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Stock, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return b, nil
}

// ReceiveBook adds stock copies of a title. A book with exactly the same
// title and author absorbs the copies and takes the new category; otherwise a
// new book is created. The returned flag reports whether it merged.
func ReceiveBook(ctx context.Context, db *sql.DB, title, author, category string, stock int) (*model.Book, bool, error) {
	if stock < 0 {
		return nil, false, fmt.Errorf("%w: received %d copies", model.ErrNegativeStock, stock)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	merged := true
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM books WHERE title = ? AND author = ?`, title, author,
	).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		merged = false
		result, err := tx.ExecContext(ctx,
			`INSERT INTO books (title, author, category, stock) VALUES (?, ?, ?, ?)`,
			title, author, category, stock,
		)
		if err != nil {
			return nil, false, fmt.Errorf("creating book: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return nil, false, fmt.Errorf("getting book id: %w", err)
		}
	case err != nil:
		return nil, false, fmt.Errorf("looking up book: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE books SET stock = stock + ?, category = ? WHERE id = ?`,
			stock, category, id,
		)
		if err != nil {
			return nil, false, fmt.Errorf("adding stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing transaction: %w", err)
	}

	book, err := GetBook(ctx, db, id)
	if err != nil {
		return nil, false, err
	}
	return book, merged, nil
}

// UpdateBook changes a book's title, author and category. Renaming onto
// another book's title and author is rejected.
func UpdateBook(ctx context.Context, db *sql.DB, id int64, title, author, category string) (*model.Book, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, category = ? WHERE id = ?`,
		title, author, category, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a book titled %q by %s already exists", model.ErrInvalidInput, title, author)
		}
		return nil, fmt.Errorf("updating book: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking book update: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return GetBook(ctx, db, id)
}

// AddStock adds delta (which may be negative) to a book's stock.
// Returns nil, nil if the book doesn't exist.
func AddStock(ctx context.Context, db *sql.DB, id int64, delta int) (*model.Book, error) {
	return changeStock(ctx, db, id, func(current int) int { return current + delta })
}

// SetStock replaces a book's stock with value.
// Returns nil, nil if the book doesn't exist.
func SetStock(ctx context.Context, db *sql.DB, id int64, value int) (*model.Book, error) {
	return changeStock(ctx, db, id, func(int) int { return value })
}

func changeStock(ctx context.Context, db *sql.DB, id int64, next func(int) int) (*model.Book, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT stock FROM books WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading stock: %w", err)
	}

	stock := next(current)
	if stock < 0 {
		return nil, fmt.Errorf("%w: book %d has %d, requested %d", model.ErrNegativeStock, id, current, stock)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE books SET stock = ? WHERE id = ?`, stock, id); err != nil {
		return nil, fmt.Errorf("updating stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return GetBook(ctx, db, id)
}

// ListBooks returns the catalog, optionally filtered by a substring of the
// title, author or category, in the given sort order.
func ListBooks(ctx context.Context, db *sql.DB, search, sort string) ([]model.Book, error) {
	q := from(goqu.T("books").As("b")).Select(
		goqu.I("b.id").As("id"),
		goqu.I("b.title").As("title"),
		goqu.I("b.author").As("author"),
		goqu.I("b.category").As("category"),
		goqu.I("b.stock").As("stock"),
		goqu.I("b.created_at").As("created_at"),
	)

	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(goqu.Or(
			goqu.I("b.title").Like(pattern),
			goqu.I("b.author").Like(pattern),
			goqu.I("b.category").Like(pattern),
		))
	}

	var order []exp.OrderedExpression
	switch sort {
	case model.SortStockLow:
		order = append(order, goqu.I("b.stock").Asc())
	case model.SortStockHigh:
		order = append(order, goqu.I("b.stock").Desc())
	case model.SortRecent:
		order = append(order, goqu.I("b.created_at").Desc(), goqu.I("b.id").Desc())
	case model.SortAvailable:
		q = q.Where(goqu.I("b.stock").Gt(0))
	case model.SortGenre:
		order = append(order, goqu.I("b.category").Asc())
	case model.SortPopular:
		q = q.LeftJoin(goqu.T("loans").As("l"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
			GroupBy(goqu.I("b.id"))
		order = append(order, goqu.COUNT(goqu.I("l.id")).Desc())
	}
	order = append(order, goqu.I("b.id").Asc())

	query, args, err := q.Order(order...).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building catalog query: %w", err)
	}

	books := []model.Book{}
	if err := scanner(db).SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return books, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// StockChange is a staff correction to a book's stock: either a relative
// Delta or an absolute Value, never both.
type StockChange struct {
	Delta *int `json:"delta,omitempty"`
	Value *int `json:"value,omitempty"`
}

// BookInput describes copies arriving at the library, or a catalog edit.
type BookInput struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Stock    int    `json:"stock"`
}

func (in *BookInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	if in.Title == "" || in.Author == "" {
		return fmt.Errorf("%w: title and author are required", model.ErrInvalidInput)
	}
	if in.Category == "" {
		in.Category = model.DefaultCategory
	}
	return nil
}

// CatalogQuery filters and orders the catalog.
type CatalogQuery struct {
	Search string
	Sort   string
}

// AdjustStock corrects a book's stock outside of loans.
func (s *Service) AdjustStock(ctx context.Context, actor model.Actor, bookID int64, change StockChange) (*model.Book, error) {
	if err := model.Authorize(actor.Role, model.CapManageInventory); err != nil {
		return nil, err
	}
	if (change.Delta == nil) == (change.Value == nil) {
		return nil, fmt.Errorf("%w: give exactly one of delta or value", model.ErrInvalidInput)
	}

	var (
		book *model.Book
		err  error
	)
	if change.Delta != nil {
		book, err = store.AddStock(ctx, s.DB, bookID, *change.Delta)
	} else {
		if *change.Value < 0 {
			return nil, fmt.Errorf("%w: stock %d", model.ErrNegativeStock, *change.Value)
		}
		book, err = store.SetStock(ctx, s.DB, bookID, *change.Value)
	}
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, notFound("book", bookID)
	}
	return book, nil
}

// ReceiveBook adds copies to the catalog. Copies of a title and author the
// library already has are merged into that book, whose category is
// replaced. The flag reports whether a merge happened.
func (s *Service) ReceiveBook(ctx context.Context, actor model.Actor, in BookInput) (*model.Book, bool, error) {
	if err := model.Authorize(actor.Role, model.CapManageInventory); err != nil {
		return nil, false, err
	}
	if err := in.normalize(); err != nil {
		return nil, false, err
	}
	if in.Stock < 0 {
		return nil, false, fmt.Errorf("%w: received %d copies", model.ErrNegativeStock, in.Stock)
	}

	return store.ReceiveBook(ctx, s.DB, in.Title, in.Author, in.Category, in.Stock)
}

// UpdateBook edits a book's title, author and category. Stock is left alone.
func (s *Service) UpdateBook(ctx context.Context, actor model.Actor, bookID int64, in BookInput) (*model.Book, error) {
	if err := model.Authorize(actor.Role, model.CapManageInventory); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	book, err := store.UpdateBook(ctx, s.DB, bookID, in.Title, in.Author, in.Category)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, notFound("book", bookID)
	}
	return book, nil
}

// Catalog lists books matching q.
func (s *Service) Catalog(ctx context.Context, actor model.Actor, q CatalogQuery) ([]model.Book, error) {
	if err := model.Authorize(actor.Role, model.CapBrowse); err != nil {
		return nil, err
	}
	if !model.ValidSort(q.Sort) {
		return nil, fmt.Errorf("%w: unknown sort %q", model.ErrInvalidInput, q.Sort)
	}
	return store.ListBooks(ctx, s.DB, q.Search, q.Sort)
}

// Book returns a single book.
func (s *Service) Book(ctx context.Context, actor model.Actor, id int64) (*model.Book, error) {
	if err := model.Authorize(actor.Role, model.CapBrowse); err != nil {
		return nil, err
	}

	book, err := store.GetBook(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, notFound("book", id)
	}
	return book, nil
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/model"
)

// BooksHandler handles catalog and inventory endpoints.
type BooksHandler struct {
	Library *library.Service
}

type receiveResponse struct {
	Book   *model.Book `json:"book"`
	Merged bool        `json:"merged"`
}

// List handles GET /api/books?search=&sort=.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.Library.Catalog(r.Context(), actor(r), library.CatalogQuery{
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, books)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := h.Library.Book(r.Context(), actor(r), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// Receive handles POST /api/books. Copies of a known title and author are
// merged into the existing book (200); otherwise a book is created (201).
func (h *BooksHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req library.BookInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := actor(r)
	book, merged, err := h.Library.ReceiveBook(r.Context(), a, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if merged {
		status = http.StatusOK
	}
	slog.Info("books received", "user", a.Username, "book", book.Title, "copies", req.Stock, "stock", book.Stock, "merged", merged)
	jsonResponse(w, status, receiveResponse{Book: book, Merged: merged})
}

// Update handles PUT /api/books/{id}.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req library.BookInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := actor(r)
	book, err := h.Library.UpdateBook(r.Context(), a, id, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	slog.Info("book updated", "user", a.Username, "book_id", id, "title", book.Title)
	jsonResponse(w, http.StatusOK, book)
}

// AdjustStock handles POST /api/books/{id}/stock with either
// {"delta": n} or {"value": n}.
func (h *BooksHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req library.StockChange
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := actor(r)
	book, err := h.Library.AdjustStock(r.Context(), a, id, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	slog.Info("stock adjusted", "user", a.Username, "book", book.Title, "stock", book.Stock)
	jsonResponse(w, http.StatusOK, book)
}

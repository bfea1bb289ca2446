package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/model"
)

// LoansHandler handles checkout, return and loan history endpoints.
type LoansHandler struct {
	Library *library.Service
}

type returnResponse struct {
	Loan            *model.Loan `json:"loan"`
	AlreadyReturned bool        `json:"already_returned"`
}

// Checkout handles POST /api/loans.
func (h *LoansHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req library.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := actor(r)
	loan, err := h.Library.Checkout(r.Context(), a, req)
	if err != nil {
		if !errors.Is(err, model.ErrPermissionDenied) {
			slog.Warn("checkout rejected", "user", a.Username, "book_id", req.BookID, "borrower_id", req.BorrowerID, "reason", err)
		}
		serviceError(w, r, err)
		return
	}

	slog.Info("loan created", "user", a.Username, "loan_id", loan.ID, "book", loan.BookTitle, "borrower", loan.Username,
		"due", loan.ExpectedReturnDate.Format(library.DateLayout))
	jsonResponse(w, http.StatusCreated, loan)
}

// Return handles POST /api/loans/{id}/return. The body is optional and may
// carry {"return_date": "YYYY-MM-DD"}. Returning a returned loan answers
// 200 with already_returned set and the loan as it was stored.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req library.ReturnRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.LoanID = id

	a := actor(r)
	loan, err := h.Library.Return(r.Context(), a, req)
	if errors.Is(err, model.ErrAlreadyClosed) {
		slog.Info("loan already returned", "user", a.Username, "loan_id", id)
		jsonResponse(w, http.StatusOK, returnResponse{Loan: loan, AlreadyReturned: true})
		return
	}
	if err != nil {
		serviceError(w, r, err)
		return
	}

	slog.Info("loan returned", "user", a.Username, "loan_id", loan.ID, "book", loan.BookTitle, "borrower", loan.Username, "fine", loan.Fine)
	jsonResponse(w, http.StatusOK, returnResponse{Loan: loan})
}

// Get handles GET /api/loans/{id}.
func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := h.Library.Loan(r.Context(), actor(r), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// ListForUser handles GET /api/users/{id}/loans?open=true.
func (h *LoansHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	openOnly := false
	if v := r.URL.Query().Get("open"); v != "" {
		if openOnly, err = strconv.ParseBool(v); err != nil {
			jsonError(w, http.StatusBadRequest, "open must be true or false")
			return
		}
	}

	loans, err := h.Library.LoansFor(r.Context(), actor(r), id, openOnly)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, loans)
}

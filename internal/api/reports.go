package api

import (
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/library"
)

// ReportsHandler handles the read-only report endpoints.
type ReportsHandler struct {
	Library *library.Service
}

// limit parses ?n=, defaulting to the library's top-N size.
func limit(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("n")
	if v == "" {
		return library.DefaultTopN, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 100 {
		return 0, false
	}
	return n, true
}

// TopBooks handles GET /api/reports/top-books?n=.
func (h *ReportsHandler) TopBooks(w http.ResponseWriter, r *http.Request) {
	n, ok := limit(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "n must be between 1 and 100")
		return
	}
	books, err := h.Library.TopBooks(r.Context(), actor(r), n)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, books)
}

// TopGenres handles GET /api/reports/top-genres?n=.
func (h *ReportsHandler) TopGenres(w http.ResponseWriter, r *http.Request) {
	n, ok := limit(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "n must be between 1 and 100")
		return
	}
	genres, err := h.Library.TopGenres(r.Context(), actor(r), n)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, genres)
}

// TopBorrowers handles GET /api/reports/top-borrowers?n=.
func (h *ReportsHandler) TopBorrowers(w http.ResponseWriter, r *http.Request) {
	n, ok := limit(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "n must be between 1 and 100")
		return
	}
	borrowers, err := h.Library.TopBorrowers(r.Context(), actor(r), n)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, borrowers)
}

// Recommendations handles GET /api/users/{id}/recommendations.
func (h *ReportsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	books, err := h.Library.RecommendationsFor(r.Context(), actor(r), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, books)
}

// Dashboard handles GET /api/me/dashboard.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Library.Dashboard(r.Context(), actor(r))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

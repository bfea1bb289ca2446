// Package api exposes the library over a JSON HTTP API.
package api

import (
	"net/http"

	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/model"
)

// NewRouter creates the API router with all endpoints registered. The
// returned handler tags and logs every request.
func NewRouter(lib *library.Service, jwtSecret string) http.Handler {
	mux := http.NewServeMux()
	db := lib.DB

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	booksHandler := &BooksHandler{Library: lib}
	loansHandler := &LoansHandler{Library: lib}
	reportsHandler := &ReportsHandler{Library: lib}

	authMW := AuthMiddleware(jwtSecret, db)
	can := func(c model.Capability, h http.HandlerFunc) http.Handler {
		return authMW(RequireCapability(c)(h))
	}

	// Public.
	mux.HandleFunc("GET /healthz", health(db))
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	// Any logged-in user.
	mux.Handle("POST /api/auth/logout", can(model.CapBrowse, authHandler.Logout))
	mux.Handle("PUT /api/auth/password", can(model.CapBrowse, authHandler.ChangePassword))
	mux.Handle("GET /api/me/dashboard", can(model.CapBrowse, reportsHandler.Dashboard))

	// Catalog: read (all roles), write (librarian+).
	mux.Handle("GET /api/books", can(model.CapBrowse, booksHandler.List))
	mux.Handle("GET /api/books/{id}", can(model.CapBrowse, booksHandler.Get))
	mux.Handle("POST /api/books", can(model.CapManageInventory, booksHandler.Receive))
	mux.Handle("PUT /api/books/{id}", can(model.CapManageInventory, booksHandler.Update))
	mux.Handle("POST /api/books/{id}/stock", can(model.CapManageInventory, booksHandler.AdjustStock))

	// Circulation. Patrons may read their own loans; the library checks
	// ownership.
	mux.Handle("POST /api/loans", can(model.CapCheckout, loansHandler.Checkout))
	mux.Handle("POST /api/loans/{id}/return", can(model.CapReturn, loansHandler.Return))
	mux.Handle("GET /api/loans/{id}", can(model.CapBrowse, loansHandler.Get))
	mux.Handle("GET /api/users/{id}/loans", can(model.CapBrowse, loansHandler.ListForUser))

	// Reports.
	mux.Handle("GET /api/reports/top-books", can(model.CapViewReports, reportsHandler.TopBooks))
	mux.Handle("GET /api/reports/top-genres", can(model.CapViewReports, reportsHandler.TopGenres))
	mux.Handle("GET /api/reports/top-borrowers", can(model.CapViewReports, reportsHandler.TopBorrowers))
	mux.Handle("GET /api/users/{id}/recommendations", can(model.CapBrowse, reportsHandler.Recommendations))

	// Users (admin only), except profile images which owners may manage.
	mux.Handle("GET /api/users", can(model.CapManageUsers, usersHandler.List))
	mux.Handle("POST /api/users", can(model.CapManageUsers, usersHandler.Create))
	mux.Handle("GET /api/users/{id}", can(model.CapManageUsers, usersHandler.Get))
	mux.Handle("PUT /api/users/{id}/role", can(model.CapManageUsers, usersHandler.UpdateRole))
	mux.Handle("PUT /api/users/{id}/password", can(model.CapManageUsers, usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", can(model.CapManageUsers, usersHandler.Delete))
	mux.Handle("PUT /api/users/{id}/image", can(model.CapBrowse, usersHandler.UploadImage))
	mux.Handle("GET /api/users/{id}/image", can(model.CapBrowse, usersHandler.GetImage))

	return RequestIDMiddleware(LoggingMiddleware(mux))
}

package api

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "Password1"
)

type testServer struct {
	*httptest.Server
	admin, librarian, patron, other string
	users                           map[string]*model.User
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(library.New(database), testJWTSecret))
	t.Cleanup(server.Close)

	ts := &testServer{Server: server, users: map[string]*model.User{}}

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	for name, role := range map[string]string{
		"admin":  model.RoleAdmin,
		"biblio": model.RoleLibrarian,
		"ana":    model.RolePatron,
		"bob":    model.RolePatron,
	} {
		u, err := store.CreateUser(ctx, database, name, string(hash), role)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		ts.users[name] = u
	}

	ts.admin = ts.login(t, "admin", testPassword)
	ts.librarian = ts.login(t, "biblio", testPassword)
	ts.patron = ts.login(t, "ana", testPassword)
	ts.other = ts.login(t, "bob", testPassword)
	return ts
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s failed: %d", username, resp.StatusCode)
	}
	var login loginResponse
	decode(t, resp, &login)
	if login.Token == "" {
		t.Fatal("empty token from login")
	}
	return login.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	req, err := authRequest(method, ts.URL+path, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) expect(t *testing.T, method, path, token string, body any, status int) *http.Response {
	t.Helper()
	resp := ts.do(t, method, path, token, body)
	if resp.StatusCode != status {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, resp.StatusCode, msg)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func dueIn(days int) string {
	return time.Now().AddDate(0, 0, days).Format(library.DateLayout)
}

func TestHealthz(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.expect(t, "GET", "/healthz", "", nil, http.StatusOK)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	ts.expect(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"}, http.StatusUnauthorized)
	ts.expect(t, "POST", "/api/auth/login", "", map[string]string{"username": "nobody", "password": testPassword}, http.StatusUnauthorized)
	ts.expect(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin"}, http.StatusBadRequest)

	ts.expect(t, "GET", "/api/books", "", nil, http.StatusUnauthorized)
	ts.expect(t, "GET", "/api/books", "not-a-token", nil, http.StatusUnauthorized)
}

func TestRegister(t *testing.T) {
	ts := setupTestServer(t)

	ts.expect(t, "POST", "/api/auth/register", "", map[string]string{"username": "new", "password": "weak"}, http.StatusBadRequest)
	ts.expect(t, "POST", "/api/auth/register", "", map[string]string{"username": "ana", "password": "Str0ngPass"}, http.StatusConflict)

	resp := ts.expect(t, "POST", "/api/auth/register", "", map[string]string{"username": "new", "password": "Str0ngPass"}, http.StatusCreated)
	var reg loginResponse
	decode(t, resp, &reg)
	if reg.User == nil || reg.User.Role != model.RolePatron {
		t.Fatalf("expected a patron account, got %+v", reg.User)
	}

	ts.expect(t, "GET", "/api/me/dashboard", reg.Token, nil, http.StatusOK)
	ts.expect(t, "POST", "/api/loans", reg.Token, map[string]any{"book_id": 1, "user_id": reg.User.ID, "due_date": dueIn(7)}, http.StatusForbidden)
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupTestServer(t)

	ts.expect(t, "POST", "/api/auth/logout", ts.patron, nil, http.StatusOK)
	ts.expect(t, "GET", "/api/books", ts.patron, nil, http.StatusUnauthorized)

	// Other sessions are unaffected.
	ts.expect(t, "GET", "/api/books", ts.other, nil, http.StatusOK)
}

func TestChangePassword(t *testing.T) {
	ts := setupTestServer(t)

	ts.expect(t, "PUT", "/api/auth/password", ts.patron, map[string]string{
		"current_password": "wrong", "new_password": "N3wPassword",
	}, http.StatusUnauthorized)
	ts.expect(t, "PUT", "/api/auth/password", ts.patron, map[string]string{
		"current_password": testPassword, "new_password": testPassword,
	}, http.StatusBadRequest)
	ts.expect(t, "PUT", "/api/auth/password", ts.patron, map[string]string{
		"current_password": testPassword, "new_password": "nodigits",
	}, http.StatusBadRequest)
	ts.expect(t, "PUT", "/api/auth/password", ts.patron, map[string]string{
		"current_password": testPassword, "new_password": "N3wPassword",
	}, http.StatusOK)

	ts.login(t, "ana", "N3wPassword")
}

func TestChangePasswordLookupFailures(t *testing.T) {
	database := db.NewTestDB(t)
	h := &AuthHandler{DB: database, JWTSecret: testJWTSecret}

	call := func() int {
		body := strings.NewReader(`{"current_password":"Password1","new_password":"N3wPassword"}`)
		req := httptest.NewRequest("PUT", "/api/auth/password", body)
		claims := &auth.Claims{UserID: 42, Username: "ghost", Role: model.RolePatron}
		req = req.WithContext(context.WithValue(req.Context(), claimsKey, claims))
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)
		return rec.Code
	}

	if code := call(); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a vanished account, got %d", code)
	}

	database.Close()
	if code := call(); code != http.StatusInternalServerError {
		t.Errorf("expected 500 when the lookup fails, got %d", code)
	}
}

func TestCirculationFlow(t *testing.T) {
	ts := setupTestServer(t)
	ana := ts.users["ana"]

	// Receive a new title, then more copies of it.
	resp := ts.expect(t, "POST", "/api/books", ts.librarian, map[string]any{
		"title": "Clean Code", "author": "R. Martin", "category": "Tecnología", "stock": 1,
	}, http.StatusCreated)
	var received receiveResponse
	decode(t, resp, &received)
	book := received.Book

	resp = ts.expect(t, "POST", "/api/books", ts.librarian, map[string]any{
		"title": "Clean Code", "author": "R. Martin", "category": "Software", "stock": 0,
	}, http.StatusOK)
	decode(t, resp, &received)
	if !received.Merged || received.Book.ID != book.ID {
		t.Fatalf("expected merge into book %d, got %+v", book.ID, received)
	}

	ts.expect(t, "POST", "/api/books", ts.patron, map[string]any{"title": "X", "author": "Y", "stock": 1}, http.StatusForbidden)

	checkout := map[string]any{"book_id": book.ID, "user_id": ana.ID, "due_date": dueIn(7)}
	ts.expect(t, "POST", "/api/loans", ts.patron, checkout, http.StatusForbidden)
	ts.expect(t, "POST", "/api/loans", ts.librarian, map[string]any{"book_id": book.ID, "user_id": ana.ID, "due_date": dueIn(0)}, http.StatusBadRequest)
	ts.expect(t, "POST", "/api/loans", ts.librarian, map[string]any{"book_id": book.ID, "user_id": ana.ID, "due_date": dueIn(31)}, http.StatusBadRequest)
	ts.expect(t, "POST", "/api/loans", ts.librarian, map[string]any{"book_id": 999, "user_id": ana.ID, "due_date": dueIn(7)}, http.StatusNotFound)

	resp = ts.expect(t, "POST", "/api/loans", ts.librarian, checkout, http.StatusCreated)
	var loan model.Loan
	decode(t, resp, &loan)
	if loan.BookTitle != "Clean Code" || loan.Username != "ana" {
		t.Errorf("expected joined fields, got %q/%q", loan.BookTitle, loan.Username)
	}

	// Last copy is out.
	ts.expect(t, "POST", "/api/loans", ts.librarian, checkout, http.StatusConflict)

	// Owners and staff can read the loan, other patrons cannot.
	ts.expect(t, "GET", fmt.Sprintf("/api/loans/%d", loan.ID), ts.patron, nil, http.StatusOK)
	ts.expect(t, "GET", fmt.Sprintf("/api/loans/%d", loan.ID), ts.other, nil, http.StatusForbidden)
	ts.expect(t, "GET", fmt.Sprintf("/api/users/%d/loans?open=true", ana.ID), ts.other, nil, http.StatusForbidden)

	resp = ts.expect(t, "GET", fmt.Sprintf("/api/users/%d/loans?open=true", ana.ID), ts.patron, nil, http.StatusOK)
	var loans []model.Loan
	decode(t, resp, &loans)
	if len(loans) != 1 {
		t.Fatalf("expected 1 open loan, got %d", len(loans))
	}

	returnPath := fmt.Sprintf("/api/loans/%d/return", loan.ID)
	ts.expect(t, "POST", returnPath, ts.patron, nil, http.StatusForbidden)
	ts.expect(t, "POST", returnPath, ts.librarian, map[string]string{"return_date": "not-a-date"}, http.StatusBadRequest)

	resp = ts.expect(t, "POST", returnPath, ts.librarian, nil, http.StatusOK)
	var returned returnResponse
	decode(t, resp, &returned)
	if returned.AlreadyReturned || returned.Loan.IsOpen() || returned.Loan.Fine != 0 {
		t.Fatalf("expected a closed loan with no fine, got %+v", returned)
	}

	resp = ts.expect(t, "POST", returnPath, ts.admin, nil, http.StatusOK)
	var again returnResponse
	decode(t, resp, &again)
	if !again.AlreadyReturned {
		t.Error("expected already_returned on second return")
	}
	if !again.Loan.ActualReturnDate.Equal(*returned.Loan.ActualReturnDate) {
		t.Error("expected second return to leave the loan unchanged")
	}

	resp = ts.expect(t, "GET", fmt.Sprintf("/api/books/%d", book.ID), ts.patron, nil, http.StatusOK)
	var b model.Book
	decode(t, resp, &b)
	if b.Stock != 1 || b.Category != "Software" {
		t.Errorf("expected 1 copy in Software, got %d in %q", b.Stock, b.Category)
	}
}

func TestAdjustStockEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.expect(t, "POST", "/api/books", ts.admin, map[string]any{"title": "Dune", "author": "Herbert", "stock": 2}, http.StatusCreated)
	var received receiveResponse
	decode(t, resp, &received)
	path := fmt.Sprintf("/api/books/%d/stock", received.Book.ID)

	ts.expect(t, "POST", path, ts.librarian, map[string]int{"delta": -3}, http.StatusUnprocessableEntity)
	ts.expect(t, "POST", path, ts.librarian, map[string]int{"delta": 1, "value": 4}, http.StatusBadRequest)
	ts.expect(t, "POST", path, ts.patron, map[string]int{"delta": 1}, http.StatusForbidden)
	ts.expect(t, "POST", "/api/books/999/stock", ts.librarian, map[string]int{"delta": 1}, http.StatusNotFound)

	resp = ts.expect(t, "POST", path, ts.librarian, map[string]int{"value": 7}, http.StatusOK)
	var b model.Book
	decode(t, resp, &b)
	if b.Stock != 7 {
		t.Errorf("expected stock 7, got %d", b.Stock)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	ts.expect(t, "POST", "/api/books", ts.admin, map[string]any{"title": "Dune", "author": "Herbert", "category": "SciFi", "stock": 0}, http.StatusCreated)
	ts.expect(t, "POST", "/api/books", ts.admin, map[string]any{"title": "Emma", "author": "Austen", "category": "Novel", "stock": 2}, http.StatusCreated)

	resp := ts.expect(t, "GET", "/api/books?sort=available", ts.patron, nil, http.StatusOK)
	var books []model.Book
	decode(t, resp, &books)
	if len(books) != 1 || books[0].Title != "Emma" {
		t.Errorf("expected only Emma available, got %v", books)
	}

	resp = ts.expect(t, "GET", "/api/books?search=herb", ts.patron, nil, http.StatusOK)
	decode(t, resp, &books)
	if len(books) != 1 || books[0].Title != "Dune" {
		t.Errorf("expected Dune by author search, got %v", books)
	}

	ts.expect(t, "GET", "/api/books?sort=bogus", ts.patron, nil, http.StatusBadRequest)
	ts.expect(t, "GET", "/api/books/abc", ts.patron, nil, http.StatusBadRequest)
	ts.expect(t, "GET", "/api/books/999", ts.patron, nil, http.StatusNotFound)
}

func TestReportsEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	ana := ts.users["ana"]

	resp := ts.expect(t, "POST", "/api/books", ts.admin, map[string]any{"title": "Dune", "author": "Herbert", "category": "SciFi", "stock": 3}, http.StatusCreated)
	var received receiveResponse
	decode(t, resp, &received)
	ts.expect(t, "POST", "/api/books", ts.admin, map[string]any{"title": "Hyperion", "author": "Simmons", "category": "SciFi", "stock": 1}, http.StatusCreated)
	ts.expect(t, "POST", "/api/loans", ts.librarian, map[string]any{"book_id": received.Book.ID, "user_id": ana.ID, "due_date": dueIn(7)}, http.StatusCreated)

	for _, path := range []string{"/api/reports/top-books", "/api/reports/top-genres", "/api/reports/top-borrowers"} {
		ts.expect(t, "GET", path, ts.patron, nil, http.StatusForbidden)
		ts.expect(t, "GET", path, ts.librarian, nil, http.StatusOK)
	}
	ts.expect(t, "GET", "/api/reports/top-books?n=0", ts.librarian, nil, http.StatusBadRequest)

	resp = ts.expect(t, "GET", "/api/reports/top-borrowers?n=1", ts.admin, nil, http.StatusOK)
	var borrowers []model.BorrowerCount
	decode(t, resp, &borrowers)
	if len(borrowers) != 1 || borrowers[0].Username != "ana" || borrowers[0].Total != 1 {
		t.Errorf("expected ana with 1 loan, got %v", borrowers)
	}

	resp = ts.expect(t, "GET", fmt.Sprintf("/api/users/%d/recommendations", ana.ID), ts.patron, nil, http.StatusOK)
	var recs []model.Book
	decode(t, resp, &recs)
	if len(recs) != 1 || recs[0].Title != "Hyperion" {
		t.Errorf("expected Hyperion recommended, got %v", recs)
	}
	ts.expect(t, "GET", fmt.Sprintf("/api/users/%d/recommendations", ana.ID), ts.other, nil, http.StatusForbidden)

	resp = ts.expect(t, "GET", "/api/me/dashboard", ts.patron, nil, http.StatusOK)
	var dash library.Dashboard
	decode(t, resp, &dash)
	if len(dash.OpenLoans) != 1 || len(dash.Recommendations) != 1 {
		t.Errorf("unexpected patron dashboard: %+v", dash)
	}

	resp = ts.expect(t, "GET", "/api/me/dashboard", ts.librarian, nil, http.StatusOK)
	decode(t, resp, &dash)
	if len(dash.TopBooks) != 1 {
		t.Errorf("expected staff dashboard with top books, got %+v", dash)
	}
}

func TestUserAdministration(t *testing.T) {
	ts := setupTestServer(t)
	bob := ts.users["bob"]

	ts.expect(t, "GET", "/api/users", ts.librarian, nil, http.StatusForbidden)

	resp := ts.expect(t, "GET", "/api/users", ts.admin, nil, http.StatusOK)
	var users []model.User
	decode(t, resp, &users)
	if len(users) != 4 {
		t.Errorf("expected 4 users, got %d", len(users))
	}

	ts.expect(t, "POST", "/api/users", ts.admin, map[string]string{"username": "eva", "password": "Passw0rdEva", "role": "bibliotecario"}, http.StatusBadRequest)
	ts.expect(t, "POST", "/api/users", ts.admin, map[string]string{"username": "bob", "password": "Passw0rdEva", "role": model.RolePatron}, http.StatusConflict)
	ts.expect(t, "POST", "/api/users", ts.admin, map[string]string{"username": "eva", "password": "Passw0rdEva", "role": model.RoleLibrarian}, http.StatusCreated)

	// Promotion takes effect on the existing token.
	ts.expect(t, "GET", "/api/reports/top-books", ts.other, nil, http.StatusForbidden)
	ts.expect(t, "PUT", fmt.Sprintf("/api/users/%d/role", bob.ID), ts.admin, map[string]string{"role": model.RoleLibrarian}, http.StatusOK)
	ts.expect(t, "GET", "/api/reports/top-books", ts.other, nil, http.StatusOK)

	ts.expect(t, "PUT", fmt.Sprintf("/api/users/%d/password", bob.ID), ts.admin, map[string]string{"password": "short"}, http.StatusBadRequest)
	ts.expect(t, "PUT", fmt.Sprintf("/api/users/%d/password", bob.ID), ts.admin, map[string]string{"password": "R3setPassword"}, http.StatusOK)
	ts.login(t, "bob", "R3setPassword")

	ts.expect(t, "DELETE", fmt.Sprintf("/api/users/%d", ts.users["admin"].ID), ts.admin, nil, http.StatusBadRequest)
	ts.expect(t, "DELETE", fmt.Sprintf("/api/users/%d", bob.ID), ts.admin, nil, http.StatusOK)
	ts.expect(t, "DELETE", fmt.Sprintf("/api/users/%d", bob.ID), ts.admin, nil, http.StatusNotFound)

	// Deleted accounts lose access immediately.
	ts.expect(t, "GET", "/api/books", ts.other, nil, http.StatusUnauthorized)
}

func pngUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for x := 0; x < 400; x++ {
		for y := 0; y < 300; y++ {
			img.Set(x, y, color.RGBA{0, 128, 255, 255})
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestProfileImage(t *testing.T) {
	ts := setupTestServer(t)
	ana := ts.users["ana"]

	upload := func(token string, userID int64) int {
		body, contentType := pngUpload(t)
		req, _ := http.NewRequest("PUT", fmt.Sprintf("%s/api/users/%d/image", ts.URL, userID), body)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", contentType)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if status := upload(ts.other, ana.ID); status != http.StatusForbidden {
		t.Errorf("expected 403 uploading for someone else, got %d", status)
	}
	// Missing and existing accounts look the same to a patron.
	if status := upload(ts.other, 999); status != http.StatusForbidden {
		t.Errorf("expected 403 uploading for a missing user, got %d", status)
	}
	if status := upload(ts.admin, 999); status != http.StatusNotFound {
		t.Errorf("expected 404 for an admin uploading for a missing user, got %d", status)
	}
	if status := upload(ts.patron, ana.ID); status != http.StatusOK {
		t.Fatalf("expected 200 uploading own image, got %d", status)
	}

	imagePath := fmt.Sprintf("/api/users/%d/image", ana.ID)
	resp := ts.expect(t, "GET", imagePath, ts.patron, nil, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding avatar: %v", err)
	}
	if img.Bounds().Dx() != img.Bounds().Dy() {
		t.Errorf("expected square avatar, got %v", img.Bounds())
	}

	ts.expect(t, "GET", imagePath, ts.other, nil, http.StatusForbidden)
	ts.expect(t, "GET", imagePath, ts.admin, nil, http.StatusOK)
	ts.expect(t, "GET", fmt.Sprintf("/api/users/%d/image", ts.users["bob"].ID), ts.other, nil, http.StatusNotFound)
}

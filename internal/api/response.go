package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/erazemk/knjiznica/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {name} path segment as a positive ID.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// rejectionStatus maps library rejections to HTTP status codes.
var rejectionStatus = []struct {
	err    error
	status int
}{
	{model.ErrPermissionDenied, http.StatusForbidden},
	{model.ErrNotFound, http.StatusNotFound},
	{model.ErrInvalidInput, http.StatusBadRequest},
	{model.ErrOutOfStock, http.StatusConflict},
	{model.ErrNegativeStock, http.StatusUnprocessableEntity},
}

// serviceError writes the response for an error returned by the library.
// Rejections are reported to the client; anything else is logged and
// hidden behind a 500.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, rs := range rejectionStatus {
		if !errors.Is(err, rs.err) {
			continue
		}
		if rs.status == http.StatusForbidden {
			slog.Warn("permission denied", "user", username(r), "method", r.Method, "path", r.URL.Path)
		}
		jsonError(w, rs.status, err.Error())
		return
	}

	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
	jsonError(w, http.StatusInternalServerError, "internal error")
}

func username(r *http.Request) string {
	if claims := GetClaims(r.Context()); claims != nil {
		return claims.Username
	}
	return ""
}

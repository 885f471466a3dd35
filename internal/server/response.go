package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavel-fokin/docs-stash/internal/domain"
)

// problem is an RFC 7807 error body.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	payload, err := json.Marshal(problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

// statusFor maps an error of the core to its HTTP status.
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, domain.ErrNotADirectory),
		errors.Is(err, domain.ErrNotAFile),
		errors.Is(err, domain.ErrInvalidFileType),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInUse):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// handleError converts an error into a problem response. Details of
// unexpected failures are logged and never sent to the client.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

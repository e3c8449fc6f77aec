package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finctl/internal/core"
	"finctl/internal/dashboard"
	"finctl/internal/ingest"
	"finctl/internal/mapping"
	"finctl/internal/pnl"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message string `json:"message"`
	Version int64  `json:"version,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status", status)
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Error: code, Detail: detail})
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSONError(w, status, code, "internal server error")
		return
	}
	slog.DebugContext(r.Context(), "Request rejected", "status", status, "error", err)
	writeJSONError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	var malformed *ingest.MalformedInputError
	var tooLarge *requestTooLargeError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request_too_large"
	case errors.As(err, &malformed):
		return http.StatusBadRequest, "malformed_input"
	case errors.Is(err, core.ErrEmptyDataset):
		return http.StatusBadRequest, "empty_dataset"
	case errors.Is(err, core.ErrNoData):
		return http.StatusNotFound, "no_data"
	case errors.Is(err, pnl.ErrUnknownLine):
		return http.StatusNotFound, "unknown_line"
	case errors.Is(err, pnl.ErrDerivedLine):
		return http.StatusUnprocessableEntity, "derived_line"
	case errors.Is(err, pnl.ErrInvalidRange),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, pnl.ErrInvalidValue),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, dashboard.ErrInvalidHorizon),
		errors.Is(err, mapping.ErrInvalidRule),
		errors.Is(err, mapping.ErrNoRules),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_input"
	}
	return http.StatusInternalServerError, "internal_error"
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
}

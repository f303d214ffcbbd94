package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/jobmatch-auth/internal/apperror"
)

// maxBodyBytes caps request bodies. Login payloads are a few hundred bytes;
// a Google ID token is around 1-2 KB.
const maxBodyBytes = 64 << 10

// ErrorResponse is the error shape of every endpoint:
//
//	{"error": "invalid_credential", "message": "Invalid Google token"}
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // set for missing_field
}

// writeJSON sets the content type and status, then encodes data.
// Headers must be set before the first Write, so the order matters.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are gone already; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst at
// its zero value so the service reports which field is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeBadBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Request body must be valid JSON",
	})
}

// writeError maps a domain error onto an HTTP response.
//
//	missing_field        → 400
//	invalid_credential   → 401
//	not_found            → 404
//	upstream_unavailable → 502
//	anything else        → 500 with an opaque message
//
// Store failures, unconverged conflicts and unknown errors are logged here with
// full detail and never described to the caller.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeInternal(w, logger, r, err)
		return
	}

	var (
		status    int
		errorType string
	)
	switch {
	case errors.Is(err, apperror.ErrMissingField):
		status, errorType = http.StatusBadRequest, "missing_field"
	case errors.Is(err, apperror.ErrInvalidCredential):
		status, errorType = http.StatusUnauthorized, "invalid_credential"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUpstreamUnavailable):
		status, errorType = http.StatusBadGateway, "upstream_unavailable"
	default:
		writeInternal(w, logger, r, err)
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

func writeInternal(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("kind", apperror.Kind(err)),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

package handler

// RESPONSE HELPERS:
// Every endpoint answers in JSON, and every error has the same shape:
//
//	{"error": "Human readable message", ...optional detail keys}
//
// Detail keys come from apperror.AppError.Details, e.g. the reason of a ban
// or the retry_after seconds of a slow-mode rejection.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/homepage/internal/apperror"
)

// writeJSON sends data with the given status code.
//
// Headers and status MUST be set before the body: once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeSuccess is the {"success": true} acknowledgement.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// statusFor maps a domain error to its HTTP status. errors.Is walks the
// whole chain, so a service may wrap an AppError with extra context.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes the error body.
//
// Store failures come back as 500 with the error text in the body. The site
// has one operator and the text is what they need when something breaks.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := map[string]any{}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		for k, v := range appErr.Details {
			body[k] = v
		}
		body["error"] = appErr.Message
		if v, ok := appErr.Details["retry_after"]; ok {
			if secs, ok := v.(int64); ok {
				w.Header().Set("Retry-After", formatInt(secs))
			}
		}
	} else {
		slog.Error("request failed", slog.String("error", err.Error()))
		body["error"] = err.Error()
	}

	writeJSON(w, status, body)
}

// writeMethodNotAllowed answers 405 with the Allow header listing what the
// resource does accept.
func writeMethodNotAllowed(w http.ResponseWriter, message string, allow ...string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
	}
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": message})
}

// MethodNotAllowed returns the fallback handler for a resource that only
// serves the given methods.
func MethodNotAllowed(allow ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w, "Method Not Allowed", allow...)
	}
}

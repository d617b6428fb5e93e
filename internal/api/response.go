package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/promptstudio/promptstudio/internal/failure"
)

// errorResponse is the body of every failed JSON call:
// { "success": false, "error": "..." }
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeFailure writes err as a JSON error, choosing the status from its
// reason. Unclassified errors become a generic 500 and are logged.
func writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(failure.ReasonOf(err))
	if status >= http.StatusInternalServerError {
		slog.Error(op+": failed", "error", err, "path", r.URL.Path)
	} else {
		slog.Info(op+": rejected", "reason", failure.ReasonOf(err), "path", r.URL.Path)
	}
	writeError(w, status, failure.Message(err))
}

// statusFor maps a failure reason to its HTTP status.
func statusFor(reason failure.Reason) int {
	switch reason {
	case failure.MissingToken, failure.BadRequest, failure.MissingName:
		return http.StatusBadRequest
	case failure.InvalidToken, failure.InvalidCredential, failure.Unauthenticated:
		return http.StatusUnauthorized
	case failure.NotConfigured:
		return http.StatusForbidden
	case failure.ArtifactNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

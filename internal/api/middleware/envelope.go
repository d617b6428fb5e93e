package middleware

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope matches the api package's error response format.
// This avoids importing the api package (which would create a circular dependency).
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Error: msg}) //nolint:errcheck
}

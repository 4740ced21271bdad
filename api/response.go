package api

import (
	"encoding/json"
	"net/http"

	"github.com/freyabot/freya/internal/log"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(logger log.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Status is already sent; nothing to do but log.
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(logger log.Logger, w http.ResponseWriter, status int, err, message string) {
	writeJSON(logger, w, status, ErrorResponse{Error: err, Message: message})
}

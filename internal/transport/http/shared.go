package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "coalesce/pkg/domain-errors"
)

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError centralizes domain error translation to HTTP responses so every
// handler emits the same JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.ToHTTPStatus(err), map[string]string{
		"error":   string(dErrors.CodeOf(err)),
		"message": err.Error(),
	})
}

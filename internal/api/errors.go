// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/mediatranscoding/internal/validate"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a generic error response
func writeError(w http.ResponseWriter, code int, err error) {
	body := map[string]any{"error": err.Error()}
	var verr validate.ValidationError
	if errors.As(err, &verr) {
		fields := make([]fieldError, 0, len(verr.Errors()))
		for _, e := range verr.Errors() {
			fields = append(fields, fieldError{Field: e.Field, Message: e.Message})
		}
		body["error"] = "invalid_request"
		body["fields"] = fields
	}
	writeJSON(w, code, body)
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// writeServiceUnavailable writes a 503 Service Unavailable response
func writeServiceUnavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": what + " unavailable"})
}

// Package shared holds the JSON response helpers every handler uses.
package shared

import (
	"encoding/json"
	"net/http"

	domainerrors "ccak/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error to its HTTP status and writes the error
// envelope. Unknown errors are reported as internal without leaking detail.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	WriteJSON(w, domainerrors.ToHTTPStatus(code), ErrorResponse{
		Error:   string(code),
		Message: domainerrors.MessageOf(err),
	})
}

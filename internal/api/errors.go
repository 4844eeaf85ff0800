package api

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeQueueFull    = "queue_full"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 with a Basic challenge.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="stomata"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

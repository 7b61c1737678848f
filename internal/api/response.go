// Package api defines the JSON response envelope shared by every
// handler: success responses carry only data, error responses carry only
// a structured error with a machine-readable UPPERCASE_SNAKE_CASE code.
package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// SuccessEnvelope wraps a successful response body.
type SuccessEnvelope struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

// ErrorEnvelope wraps a failed response body.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the structured error clients switch on.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Success writes a successful JSON response.
//
//	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
//	// {"data": {"ok": true}}
func Success(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(SuccessEnvelope{Data: data}); err != nil {
		log.Printf("api: encode success response: %v", err)
	}
}

// Error writes an error response with the given code and optional
// field-level details.
//
//	api.Error(w, http.StatusForbidden, "XSRF_MISMATCH", "missing or invalid XSRF token", nil)
func Error(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	}); err != nil {
		log.Printf("api: encode error response: %v", err)
	}
}

// ValidationError is a 400 with the failing field and constraint in the
// details, e.g. ("not a valid url", "url", "format").
func ValidationError(w http.ResponseWriter, message, field, constraint string) {
	Error(w, http.StatusBadRequest, "VALIDATION_FAILED", message, map[string]interface{}{
		"field":      field,
		"constraint": constraint,
	})
}

// InvalidJSON is a 400 for request bodies that fail to decode.
func InvalidJSON(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "INVALID_JSON", message, nil)
}

// MissingField is a 400 for an absent required field.
func MissingField(w http.ResponseWriter, field string) {
	Error(w, http.StatusBadRequest, "MISSING_FIELD",
		"Required field is missing: "+field,
		map[string]interface{}{"field": field})
}

// Unauthorized is a 401 for requests that need an authenticated caller.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// InvalidLoginToken is a 401 for a wrong, already-used, or unknown email
// login code. Deliberately a single code for all three causes, so the
// response does not reveal whether the account or the pending login exists.
func InvalidLoginToken(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "INVALID_LOGIN_TOKEN", "That login code is invalid or has expired", nil)
}

// SessionExpired is a 401 for an elapsed claim window or sliding session.
func SessionExpired(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "SESSION_EXPIRED", "Your session has expired. Please log in again.", nil)
}

// Forbidden is a 403 for an authenticated caller without the capability.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "FORBIDDEN", message, nil)
}

// ResourceNotFound is a 404 naming the missing resource.
func ResourceNotFound(w http.ResponseWriter, resourceType, resourceID string) {
	Error(w, http.StatusNotFound, "NOT_FOUND",
		resourceType+" '"+resourceID+"' not found", nil)
}

// Conflict is a 409 for duplicate submissions and already-claimed tokens.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, "CONFLICT", message, nil)
}

// RateLimitExceeded is a 429 for the per-user login and invite limits.
func RateLimitExceeded(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", message, nil)
}

// InternalError is a 500. The underlying error is logged, never sent to
// the client.
func InternalError(w http.ResponseWriter, err error) {
	if err != nil {
		log.Printf("internal error: %v", err)
	}
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"An unexpected error occurred. Please try again later.", nil)
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/undercontrol/gateway/internal/router"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
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

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 error response.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// statusForEnvelope maps a command envelope to an HTTP status code. The
// envelope itself is always the response body; the status is a transport
// hint only.
func statusForEnvelope(env router.Envelope) int {
	if env.OK {
		return http.StatusOK
	}
	switch env.Error.Kind {
	case router.FailUnknownEntry:
		return http.StatusNotFound
	case router.FailUnsupportedOperation, router.FailInvalidParams:
		return http.StatusBadRequest
	case router.FailUnreachable:
		return http.StatusGatewayTimeout
	case router.FailUnauthorized, router.FailVendorError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

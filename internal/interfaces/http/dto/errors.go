package dto

import (
	"net/http"

	"github.com/invoicing/backend/internal/domain/shared"
)

// Domain error codes pass through to clients unchanged. The codes below are
// the ones only the HTTP layer produces.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is used when request binding fails validation
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeUnauthorized is used when the actor token is missing or invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the actor token has expired
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	// ErrCodeRouteNotFound is used for unknown routes
	ErrCodeRouteNotFound = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeInvalidInput:             http.StatusBadRequest,
	shared.CodeNotFound:                 http.StatusNotFound,
	shared.CodeIllegalTransition:        http.StatusUnprocessableEntity,
	shared.CodeNotEditable:              http.StatusUnprocessableEntity,
	shared.CodeAlreadyFinalized:         http.StatusConflict,
	shared.CodeConcurrencyConflict:      http.StatusConflict,
	shared.CodeIncompleteGraph:          http.StatusInternalServerError,
	shared.CodeImmutableRecordViolation: http.StatusInternalServerError,

	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeUnauthorized:  http.StatusUnauthorized,
	ErrCodeTokenExpired:  http.StatusUnauthorized,
	ErrCodeRouteNotFound: http.StatusNotFound,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsServerError reports whether the code maps to a 5xx status
func IsServerError(code string) bool {
	return GetHTTPStatus(code) >= http.StatusInternalServerError
}

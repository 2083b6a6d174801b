package errors

import (
	"errors"
	"net/http"
)

// MapToHTTPStatus translates domain errors into HTTP status codes at the API
// boundary. Unknown errors are reported as internal to avoid leaking details.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbiddenDomain):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrProtocolViolation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

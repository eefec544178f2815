// Package apperrors holds the error kinds shared by the domain packages.
// Callers wrap a kind with fmt.Errorf("...: %w", kind) and test it with errors.Is.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned for malformed or out-of-range input
	ErrValidation = errors.New("validation failure")
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor lacks the capability for an operation
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned for illegal state transitions, lost races and duplicates
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is returned when an external delivery channel fails
	ErrUnavailable = errors.New("unavailable")
	// ErrUnauthorized is returned for missing or invalid credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExpired is returned when a one-time code has run out
	ErrExpired = errors.New("expired")
	// ErrRateLimited is returned when a request repeats too soon
	ErrRateLimited = errors.New("too many requests")
)

// HTTPStatus maps an error to the status code the API responds with
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

package notifications

import (
	"errors"
	"net/http"
)

// Domain errors for notification operations.
var (
	ErrNotFound    = errors.New("notification not found")
	ErrDuplicate   = errors.New("notification already exists")
	ErrInvalidUser = errors.New("invalid user reference")
)

// MapHTTPStatus maps notification domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidUser) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

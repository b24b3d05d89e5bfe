package files

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/countersign/pkg/storage"
)

// Domain errors for file operations.
var (
	ErrNotFound     = errors.New("file not found")
	ErrInvalidFile  = errors.New("invalid file")
	ErrNotPDF       = errors.New("file is not a pdf")
	ErrNotImage     = errors.New("file is not an image")
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	ErrUnavailable  = errors.New("file storage unavailable")
)

// MapHTTPStatus maps file domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrNotPDF), errors.Is(err, ErrNotImage):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrEmptyKey), errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

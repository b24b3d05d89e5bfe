package workflows

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for workflow operations.
var (
	ErrValidation              = errors.New("validation failed")
	ErrOutOfSequence           = errors.New("slot is not current")
	ErrWorkflowClosed          = errors.New("workflow is closed")
	ErrIncompletePlacement     = errors.New("every signer needs an anchor")
	ErrEmptyRoster             = errors.New("roster is empty")
	ErrNoFile                  = errors.New("no source file attached")
	ErrNotFound                = errors.New("workflow not found")
	ErrDraftNotFound           = errors.New("draft not found")
	ErrDuplicate               = errors.New("workflow already exists")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// ValidationError describes a rejected field. It unwraps to ErrValidation.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// MapHTTPStatus maps workflow domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDraftNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOutOfSequence), errors.Is(err, ErrWorkflowClosed), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrIncompletePlacement), errors.Is(err, ErrEmptyRoster), errors.Is(err, ErrNoFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

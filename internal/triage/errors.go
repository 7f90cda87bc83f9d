package triage

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors shared by every engine component.
var (
	ErrValidation            = errors.New("invalid message")
	ErrNotFound              = errors.New("state vector not found")
	ErrConflictingTransition = errors.New("conflicting transition")
	ErrStorage               = errors.New("storage failure")
	ErrInvalidZone           = errors.New("invalid zone")
)

// ValidationError reports a malformed message rejected before classification.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StorageError wraps err so callers can detect transient persistence failures
// with errors.Is(err, ErrStorage). Domain errors pass through unchanged.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflictingTransition) ||
		errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// MapHTTPStatus maps engine errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidZone):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflictingTransition):
		return http.StatusConflict
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by services. Handlers map these onto HTTP
// status codes in one place.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("conflict with current state")
	ErrInsufficientFunds = errors.New("insufficient credit balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrForbidden         = errors.New("not allowed")
	ErrUnavailable       = errors.New("service unavailable")
)

// ValidationError carries a field-level message for 400 responses.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrDuplicate       = errors.New("duplicate record")
	ErrFutureDate      = errors.New("date is in the future")
	ErrInvalidSnapshot = errors.New("invalid backup file")
	ErrInvalidTotal    = errors.New("transaction total does not match its items")
)

// ValidationError is returned when a request is rejected before any state
// changes.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func Invalid(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Details: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

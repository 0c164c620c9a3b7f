package domain

import (
	"errors"
	"fmt"
)

// Input validation sentinels. These never reach the coordinator: the UI
// surfaces them next to the offending field.
var (
	ErrNotEmpty       = errors.New("must not be empty")
	ErrInvalidPort    = errors.New("must be a number in 1..65535")
	ErrInvalidQos     = errors.New(`must be "0", "1" or "2"`)
	ErrInvalidPayload = errors.New("payload does not match payload type")
)

// ValidationError names the form field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NotEmpty returns a ValidationError when value is empty.
func NotEmpty(field, value string) error {
	if value == "" {
		return invalid(field, ErrNotEmpty)
	}
	return nil
}

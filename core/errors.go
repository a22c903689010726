package core

import "github.com/pkg/errors"

var (
	// ErrPermissionDenied is returned whenever the principal's role lacks the
	// capability required by an operation. Handlers surface a generic message
	// without leaking which check failed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrServiceUnavailable is returned when an external collaborator call fails;
	// it is surfaced to users as a generic "try again later".
	ErrServiceUnavailable = errors.New("service unavailable")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ConflictError indicates a uniqueness or state invariant violation.
type ConflictError struct {
	Field   string
	Message string
}

func NewConflictError(field, msg string) error {
	return &ConflictError{Field: field, Message: msg}
}

func (err ConflictError) Error() string { return err.Message }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

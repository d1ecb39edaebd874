package core

import "github.com/pkg/errors"

// FieldError reports a problem with a single input field, keyed by the
// field's JSON name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries user-facing field errors out of the services;
// the HTTP error handler renders Fields as a field→message map.
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

// shutdown marks an error as unrecoverable; the API error handler checks
// for it with IsShutdown and stops the server gracefully.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err (or its cause) requires a graceful stop.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

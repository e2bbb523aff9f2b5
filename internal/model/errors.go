package model

import (
	"errors"
	"fmt"
)

// ErrNotFound matches lookups that found nothing, remote or local.
var ErrNotFound = errors.New("todo not found")

// NetworkError is a failed remote call: either a non-2xx response (Status set)
// or a transport failure (Status 0, Err set).
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: network error: %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: network error: %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
	}
	return e.Op + ": network error"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets a 404 response match ErrNotFound.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// ValidationError is bad user input rejected before any sync work happens.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return e.Msg
}

// NotFoundError names the id that could not be resolved.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("todo %d not found", e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

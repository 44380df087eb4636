package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidType   = errors.New("invalid type")
	ErrMissingID     = errors.New("missing id")
	ErrMissingUser   = errors.New("missing user id")
	ErrEmptyName     = errors.New("empty name")
	ErrZeroDate      = errors.New("date cannot be zero")
	ErrSameAccount   = errors.New("source and destination account are the same")
	ErrUnknownRef    = errors.New("referenced row does not exist")
)

// ValidationError rejects malformed input before any write happens.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError means a lookup by id found nothing for the calling user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NotPersistedError means an atomic unit failed and was rolled back.
type NotPersistedError struct {
	Op  string
	Err error
}

func (e *NotPersistedError) Error() string {
	return fmt.Sprintf("%s not persisted: %v", e.Op, e.Err)
}

func (e *NotPersistedError) Unwrap() error {
	return e.Err
}

// FatalStartupError means the schema could not be brought to the expected
// shape. The process must not continue.
type FatalStartupError struct {
	Stage string
	Err   error
}

func (e *FatalStartupError) Error() string {
	return fmt.Sprintf("startup failed during %s: %v", e.Stage, e.Err)
}

func (e *FatalStartupError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsNotPersisted(err error) bool {
	var np *NotPersistedError
	return errors.As(err, &np)
}

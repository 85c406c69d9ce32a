// Package apperr defines the domain failure taxonomy. Services return these
// errors and the HTTP layer maps each kind to a status code; everything else
// is treated as an internal failure.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindPrecondition
)

// Sentinel errors, one per kind, for errors.Is checks.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPrecondition = errors.New("precondition failed")
)

var sentinels = map[Kind]error{
	KindValidation:   ErrValidation,
	KindNotFound:     ErrNotFound,
	KindForbidden:    ErrForbidden,
	KindUnauthorized: ErrUnauthorized,
	KindPrecondition: ErrPrecondition,
}

// Error is a domain failure with a user-facing message.
type Error struct {
	kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Kind() Kind { return e.kind }

// Is makes an Error match the sentinel of its kind.
func (e *Error) Is(target error) bool { return target == sentinels[e.kind] }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Precondition(format string, args ...any) *Error {
	return newError(KindPrecondition, format, args...)
}

// IsDomain reports whether err belongs to the domain taxonomy.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

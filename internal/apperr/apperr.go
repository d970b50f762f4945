// Package apperr holds the error kinds surfaced to API callers and to the model.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, caller-visible error category.
type Kind string

const (
	Validation   Kind = "validation_error"
	NotFound     Kind = "not_found"
	Forbidden    Kind = "forbidden"
	Upstream     Kind = "upstream_error"
	Unauthorized Kind = "unauthorized"
	Internal     Kind = "internal_error"
)

// Error carries a Kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against another *Error of the same kind, so that
// errors.Is(err, &apperr.Error{Kind: apperr.NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validationf(format string, args ...any) error { return New(Validation, format, args...) }
func NotFoundf(format string, args ...any) error   { return New(NotFound, format, args...) }
func Forbiddenf(format string, args ...any) error  { return New(Forbidden, format, args...) }

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the message of the first *Error in err's chain, or err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

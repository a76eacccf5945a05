// Package apperrors carries the typed failure kinds returned by the workflow
// core. Callers branch on the kind to decide between retrying (Conflict,
// ExpiredEntity) and abandoning (Validation, InvalidTransition).
package apperrors

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidTransition
	KindConflict
	KindExpiredEntity
	KindValidation
	KindCascadeFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindExpiredEntity:
		return "expired_entity"
	case KindValidation:
		return "validation_failure"
	case KindCascadeFailure:
		return "cascade_failure"
	default:
		return "unknown"
	}
}

type Error struct {
	kind Kind
	msg  string
	err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause. The cause stays reachable
// through errors.Is / errors.Unwrap.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

// Message returns the human-readable reason without the kind prefix.
func (e *Error) Message() string { return e.msg }

// KindOf extracts the kind from anywhere in the wrap chain, or KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }
func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsExpired(err error) bool           { return KindOf(err) == KindExpiredEntity }
func IsValidation(err error) bool        { return KindOf(err) == KindValidation }

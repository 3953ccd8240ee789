// Package domainerrors provides code-carrying errors shared across the
// service. Codes classify failures for transport mapping and for callers
// deciding whether an input is worth retrying with different parameters.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	// Generic service codes.
	CodeInternal     Code = "internal"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeUnavailable  Code = "unavailable"

	// Placement pipeline codes.
	CodeConfiguration        Code = "configuration"
	CodePartition            Code = "partition"
	CodeMappingFailed        Code = "mapping_failed"
	CodeUnsupportedCondition Code = "unsupported_condition"
	CodeNotEvaluated         Code = "not_evaluated"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// yields nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is a convenience alias for HasCode used in assertions.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the code of the outermost classified error in the
// chain, or CodeInternal when no classified error is present.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

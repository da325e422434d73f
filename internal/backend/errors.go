package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Code classifies a backend failure.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeDuplicate        Code = "DUPLICATE"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeServer           Code = "SERVER_ERROR"
	CodeNetwork          Code = "NETWORK_ERROR"
)

// Error is the typed failure every backend call resolves to.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	// Field names the offending field of a VALIDATION_ERROR.
	Field string `json:"field,omitempty"`
	Err   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code as a string for transport layers.
func (e *Error) ErrorCode() string {
	return string(e.Code)
}

// ErrorField returns the offending field, if any.
func (e *Error) ErrorField() string {
	return e.Field
}

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Field == ""
}

// Sentinels for errors.Is.
var (
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrValidation       = &Error{Code: CodeValidation}
	ErrDuplicate        = &Error{Code: CodeDuplicate}
	ErrPermissionDenied = &Error{Code: CodePermissionDenied}
	ErrServer           = &Error{Code: CodeServer}
	ErrNetwork          = &Error{Code: CodeNetwork}
)

// NotFound builds a NOT_FOUND error.
func NotFound(what, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

// Validation builds a VALIDATION_ERROR for a field.
func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// Duplicate builds a DUPLICATE error.
func Duplicate(message string) *Error {
	return &Error{Code: CodeDuplicate, Message: message}
}

// Wrap attaches a code to an arbitrary cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf classifies err. Errors that are not *Error are treated as network
// failures when they come from the transport or a deadline, server failures
// otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeNetwork
	}
	return CodeServer
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Field
	}
	return ""
}

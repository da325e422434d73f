package resolver

import (
	"errors"
	"fmt"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// Code classifies a resolution failure.
type Code string

const (
	CodeDuplicate        Code = "DUPLICATE"
	CodeInvalidReference Code = "INVALID_REFERENCE"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnknown          Code = "UNKNOWN"
)

// Error reports which reference could not be resolved and why.
type Error struct {
	Code   Code
	Entity backend.EntityType
	Label  string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s %q: %s: %v", e.Entity, e.Label, e.Code, e.Err)
	}
	return fmt.Sprintf("resolve %s %q: %s", e.Entity, e.Label, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the resolver code for transport layers.
func (e *Error) ErrorCode() string {
	return string(e.Code)
}

// ErrorField names the entity that failed to resolve.
func (e *Error) ErrorField() string {
	return string(e.Entity)
}

// CodeOf returns the resolver code carried by err, or "" when err is not a
// resolution failure.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func codeFromBackend(err error) Code {
	switch backend.CodeOf(err) {
	case backend.CodeDuplicate:
		return CodeDuplicate
	case backend.CodeValidation, backend.CodeNotFound:
		return CodeInvalidReference
	case backend.CodePermissionDenied:
		return CodePermissionDenied
	default:
		return CodeUnknown
	}
}

package httpx

import (
	"errors"
	"net/http"
)

// ErrBadRequest marks malformed input detected by a handler itself.
var ErrBadRequest = errors.New("bad request")

// Coded is implemented by errors that carry a machine readable code.
type Coded interface {
	error
	ErrorCode() string
}

// Fielded is implemented by errors that name the offending input field.
type Fielded interface {
	ErrorField() string
}

var statusByCode = map[string]int{
	"NOT_FOUND":         http.StatusNotFound,
	"VALIDATION_ERROR":  http.StatusBadRequest,
	"INVALID_REFERENCE": http.StatusUnprocessableEntity,
	"DUPLICATE":         http.StatusConflict,
	"BUSY":              http.StatusConflict,
	"PERMISSION_DENIED": http.StatusForbidden,
	"NETWORK_ERROR":     http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError maps coded errors to HTTP responses using RFC7807. Details of
// unclassified failures are not exposed.
func RespondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBadRequest) {
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var coded Coded
	if !errors.As(err, &coded) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	code := coded.ErrorCode()
	status := StatusFor(code)
	detail := ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Code:   code,
	}
	if status != http.StatusInternalServerError {
		detail.Detail = err.Error()
	}
	var fielded Fielded
	if errors.As(err, &fielded) {
		detail.Field = fielded.ErrorField()
	}
	WriteProblem(w, detail)
}

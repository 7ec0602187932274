package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeInvalidTransition        Code = "INVALID_TRANSITION"
	CodeTableNotAvailable        Code = "TABLE_NOT_AVAILABLE"
	CodePartySizeExceedsCapacity Code = "PARTY_SIZE_EXCEEDS_CAPACITY"
	CodePreconditionFailed       Code = "PRECONDITION_FAILED"
	CodeValidationFailed         Code = "VALIDATION_FAILED"

	CodeNotFound       Code = "NOT_FOUND"
	CodeUpstreamFailed Code = "UPSTREAM_FAILED"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Error is the typed failure returned by both engines and the service layer.
// No entity is mutated when one is returned.
type Error struct {
	Code       Code
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so callers can use errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func InvalidTransition(message string, details map[string]any) *Error {
	return newError(CodeInvalidTransition, message, http.StatusUnprocessableEntity, details)
}

func TableNotAvailable(message string, details map[string]any) *Error {
	return newError(CodeTableNotAvailable, message, http.StatusConflict, details)
}

func PartySizeExceedsCapacity(message string, details map[string]any) *Error {
	return newError(CodePartySizeExceedsCapacity, message, http.StatusUnprocessableEntity, details)
}

func PreconditionFailed(message string, details map[string]any) *Error {
	return newError(CodePreconditionFailed, message, http.StatusConflict, details)
}

func ValidationFailed(message string, details map[string]any) *Error {
	return newError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NotFound(message string) *Error {
	return newError(CodeNotFound, message, http.StatusNotFound, nil)
}

func UpstreamFailed(message string, details map[string]any) *Error {
	return newError(CodeUpstreamFailed, message, http.StatusBadGateway, details)
}

func Internal(message string) *Error {
	return newError(CodeInternal, message, http.StatusInternalServerError, nil)
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidTransition        = &Error{Code: CodeInvalidTransition}
	ErrTableNotAvailable        = &Error{Code: CodeTableNotAvailable}
	ErrPartySizeExceedsCapacity = &Error{Code: CodePartySizeExceedsCapacity}
	ErrPreconditionFailed       = &Error{Code: CodePreconditionFailed}
	ErrValidationFailed         = &Error{Code: CodeValidationFailed}
	ErrNotFound                 = &Error{Code: CodeNotFound}
)

// As unwraps err into an *Error. Unknown errors become INTERNAL_ERROR so the
// HTTP layer always has a status and code to render.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("Action failed")
}

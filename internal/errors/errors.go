// Package errors provides the coded domain errors surfaced by cellar operations.
//
// Services return *Error values; the HTTP layer maps Code to a status and the
// realtime layer mirrors the same code and message to the user's notice stream.
//
//	if set.LocationTaken(loc, cellarID, "") {
//	    return errors.DuplicateLocationf("location %q is already used in cellar %q", loc, cellarID)
//	}
//
//	if errors.Is(err, errors.ErrCellarNotEmpty) {
//	    // ask the user where the wines should go
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Cellar operation codes.
const (
	CodeNotReady             Code = "NOT_READY"
	CodeDuplicateLocation    Code = "DUPLICATE_LOCATION"
	CodeCellarNotEmpty       Code = "CELLAR_NOT_EMPTY"
	CodeCannotReassignToSelf Code = "CANNOT_REASSIGN_TO_SELF"
	CodeInvalidID            Code = "INVALID_ID"
	CodeNotFound             Code = "NOT_FOUND"
	CodeStore                Code = "STORE_ERROR"
)

// Account, transport and upstream codes.
const (
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeValidation         Code = "VALIDATION"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeUpstream           Code = "UPSTREAM_ERROR"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateLocation, CodeCellarNotEmpty, CodeAlreadyExists:
		return http.StatusConflict
	case CodeNotReady, CodeUnauthorized, CodeInvalidCredentials, CodeTokenExpired:
		return http.StatusUnauthorized
	case CodeValidation, CodeInvalidID, CodeCannotReassignToSelf:
		return http.StatusBadRequest
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotReady             = &Error{Code: CodeNotReady, Message: "not signed in"}
	ErrDuplicateLocation    = &Error{Code: CodeDuplicateLocation, Message: "location already in use"}
	ErrCellarNotEmpty       = &Error{Code: CodeCellarNotEmpty, Message: "cellar is not empty"}
	ErrCannotReassignToSelf = &Error{Code: CodeCannotReassignToSelf, Message: "cannot reassign a cellar to itself"}
	ErrInvalidID            = &Error{Code: CodeInvalidID, Message: "invalid id"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrStore                = &Error{Code: CodeStore, Message: "store error"}
	ErrAlreadyExists        = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrUnauthorized         = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInvalidCredentials   = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrTokenExpired         = &Error{Code: CodeTokenExpired, Message: "token expired"}
	ErrUpstream             = &Error{Code: CodeUpstream, Message: "upstream error"}
	ErrRateLimited          = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrUnavailable          = &Error{Code: CodeUnavailable, Message: "unavailable"}
	ErrInternal             = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotReady creates a not ready error.
func NotReady(msg string) *Error {
	return &Error{Code: CodeNotReady, Message: msg}
}

// DuplicateLocation creates a duplicate location error.
func DuplicateLocation(msg string) *Error {
	return &Error{Code: CodeDuplicateLocation, Message: msg}
}

// DuplicateLocationf creates a duplicate location error with formatted message.
func DuplicateLocationf(format string, args ...any) *Error {
	return &Error{Code: CodeDuplicateLocation, Message: fmt.Sprintf(format, args...)}
}

// CellarNotEmpty creates a cellar not empty error.
func CellarNotEmpty(msg string) *Error {
	return &Error{Code: CodeCellarNotEmpty, Message: msg}
}

// CannotReassignToSelf creates a reassign-to-self error.
func CannotReassignToSelf(msg string) *Error {
	return &Error{Code: CodeCannotReassignToSelf, Message: msg}
}

// InvalidID creates an invalid id error.
func InvalidID(msg string) *Error {
	return &Error{Code: CodeInvalidID, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a persistence failure, keeping the driver message visible.
func Store(err error) *Error {
	msg := "store error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: CodeStore, Message: msg, cause: err}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// TokenExpired creates a token expired error.
func TokenExpired(msg string) *Error {
	return &Error{Code: CodeTokenExpired, Message: msg}
}

// Upstream creates an upstream service error.
func Upstream(msg string) *Error {
	return &Error{Code: CodeUpstream, Message: msg}
}

// RateLimited creates a rate limited error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Unavailable creates an unavailable error, used when an optional
// integration has not been configured.
func Unavailable(msg string) *Error {
	return &Error{Code: CodeUnavailable, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

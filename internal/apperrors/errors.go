// Package apperrors defines the machine-readable error codes returned by the API
// and the HTTP status each code maps to.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeEmailExists       Code = "EMAIL_EXISTS"
	CodeAlreadySeller     Code = "ALREADY_SELLER"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidCredential Code = "INVALID_CREDENTIALS"
	CodeForbidden         Code = "FORBIDDEN"
	CodeAccountInactive   Code = "ACCOUNT_INACTIVE"
	CodeNotFound          Code = "NOT_FOUND"
	CodeDatabase          Code = "DATABASE_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeRateLimited       Code = "RATE_LIMITED"

	// Order lifecycle
	CodeDownloadLimit Code = "DOWNLOAD_LIMIT_EXCEEDED"
	CodeDownloadExp   Code = "DOWNLOAD_EXPIRED"
	CodeInvalidState  Code = "INVALID_STATE"
	CodePaymentFailed Code = "PAYMENT_FAILED"

	// Reviews
	CodeAlreadyVoted     Code = "ALREADY_VOTED"
	CodeAlreadyReviewed  Code = "ALREADY_REVIEWED"
	CodePurchaseRequired Code = "PURCHASE_REQUIRED"

	// Templates
	CodeSlugExists Code = "SLUG_EXISTS"
)

// Error is a domain error carrying a code, a client-safe message and optional
// per-field validation messages.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so sentinel values compare equal to wrapped copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus returns the status code the API responds with for this error.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Code)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: "Validation failed", Fields: fields}
}

func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Message: resource + " not found"}
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "You do not have permission to perform this action"
	}
	return &Error{Code: CodeForbidden, Message: message}
}

func InvalidState(message string) *Error {
	return &Error{Code: CodeInvalidState, Message: message}
}

// Database wraps an unclassified persistence failure. The message never
// includes the underlying error.
func Database(err error) *Error {
	return &Error{Code: CodeDatabase, Message: "Database error", Err: err}
}

func StatusFor(code Code) int {
	switch code {
	case CodeUnauthorized, CodeInvalidCredential:
		return http.StatusUnauthorized
	case CodeForbidden, CodeAccountInactive:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeDatabase, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Package apierr defines the typed error taxonomy for the SDK gateway and
// the single JSON shape it is rendered to at the HTTP boundary.
package apierr

import (
	"errors"
	"net/http"
)

// Code identifies an expected failure class exposed to API callers.
type Code string

const (
	CodeAuth         Code = "AUTH_ERROR"
	CodeForbidden    Code = "FORBIDDEN"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeMonthlyLimit Code = "MONTHLY_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is an expected API failure carrying the HTTP status and stable code.
type Error struct {
	Code    Code
	Status  int
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

func Auth(msg string) *Error {
	return &Error{Code: CodeAuth, Status: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimit, Status: http.StatusTooManyRequests, Message: msg}
}

func MonthlyLimit(msg string) *Error {
	return &Error{Code: CodeMonthlyLimit, Status: http.StatusTooManyRequests, Message: msg}
}

func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msg}
}

// From converts any error into an *Error. Unexpected errors map to a generic
// INTERNAL_ERROR so internals never leak to callers.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error")
}

// Body is the uniform JSON error envelope.
type Body struct {
	Error BodyDetail `json:"error"`
}

// BodyDetail carries the code and message inside the envelope.
type BodyDetail struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ToBody renders an *Error as the wire envelope.
func ToBody(e *Error) Body {
	return Body{Error: BodyDetail{Code: e.Code, Message: e.Message}}
}

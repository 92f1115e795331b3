// Package apperr defines the error taxonomy surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeGone         Code = "GONE"
	CodeBadGateway   Code = "BAD_GATEWAY"
	CodeInternal     Code = "INTERNAL"
)

// Error is a classified error with a caller-visible message.
type Error struct {
	Code    Code
	Message string
	// Upgrade is set on entitlement denials.
	Upgrade bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func Unauthorized(msg string) *Error { return New(CodeUnauthorized, msg) }
func NotFound(msg string) *Error     { return New(CodeNotFound, msg) }
func BadRequest(msg string) *Error   { return New(CodeBadRequest, msg) }
func Gone(msg string) *Error         { return New(CodeGone, msg) }

// Forbidden builds an entitlement denial.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg, Upgrade: true}
}

// BadGateway wraps an upstream failure.
func BadGateway(msg string, err error) *Error {
	return Wrap(CodeBadGateway, msg, err)
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// As extracts the classified error, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

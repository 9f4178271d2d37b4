package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an error for reporting back to the originating
// connection. No code is fatal to the process.
type ErrorCode string

const (
	CodeMalformed    ErrorCode = "malformed"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeNotFound     ErrorCode = "not-found"
	CodeDeclined     ErrorCode = "declined"
)

// Error is a code-carrying error reported only to the caller that
// triggered it.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func Malformed(format string, args ...any) *Error {
	return &Error{Code: CodeMalformed, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Declined(format string, args ...any) *Error {
	return &Error{Code: CodeDeclined, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the taxonomy code from err, defaulting to declined for
// errors that carry none.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeDeclined
}

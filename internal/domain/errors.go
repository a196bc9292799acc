package domain

import "errors"

type ErrorCode string

const (
	CodeNotFound      ErrorCode = "not_found"
	CodeForbidden     ErrorCode = "forbidden"
	CodeConflict      ErrorCode = "conflict"
	CodeValidation    ErrorCode = "validation"
	CodeAlreadyClosed ErrorCode = "already_closed"
)

// Error is a coded failure returned synchronously to the connection that
// caused it. It is never pushed into a broadcast path.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func NotFound(msg string) *Error      { return &Error{Code: CodeNotFound, Message: msg} }
func Forbidden(msg string) *Error     { return &Error{Code: CodeForbidden, Message: msg} }
func Conflict(msg string) *Error      { return &Error{Code: CodeConflict, Message: msg} }
func Validation(msg string) *Error    { return &Error{Code: CodeValidation, Message: msg} }
func AlreadyClosed(msg string) *Error { return &Error{Code: CodeAlreadyClosed, Message: msg} }

// CodeOf extracts the machine-readable code from err, or empty when err is
// not a coded domain error.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

package model

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable category for programmatic error handling.
//
// Callers should branch on the code (HasCode, errors.Is against a package
// sentinel) rather than matching error strings.
type ErrorCode string

const (
	ErrInvalidAddress    ErrorCode = "INVALID_ADDRESS"
	ErrIncompleteMessage ErrorCode = "INCOMPLETE_MESSAGE"
	ErrMalformedRPC      ErrorCode = "MALFORMED_RPC"
	ErrAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrStorageIO         ErrorCode = "STORAGE_IO"
	ErrContentMismatch   ErrorCode = "CONTENT_MISMATCH"
)

// CodedError is a stable error with a machine-readable code and a human message.
//
// Two CodedErrors match under errors.Is when their codes are equal, so a
// package sentinel such as storage.ErrNotFound matches any wrapped error
// carrying the same code.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *CodedError) Is(target error) bool {
	t, ok := target.(*CodedError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

func Errorf(code ErrorCode, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches cause to a new CodedError. A nil cause yields a plain NewError.
func WrapError(code ErrorCode, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the outermost CodedError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *CodedError
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// HasCode reports whether err is (or wraps) a CodedError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &CodedError{Code: code})
}

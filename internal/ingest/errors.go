package ingest

import (
	"fmt"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/filestream/internal/quota"
)

// ErrorCode identifies why an ingestion or file operation failed.
type ErrorCode string

const (
	ErrCodeBanned             ErrorCode = "BANNED"
	ErrCodeSizeExceeded       ErrorCode = "SIZE_EXCEEDED"
	ErrCodeDailyLimitExceeded ErrorCode = "DAILY_LIMIT_EXCEEDED"
	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeProgrammingError   ErrorCode = "PROGRAMMING_ERROR"
	ErrCodeCanceled           ErrorCode = "CANCELED"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
)

// Category groups error codes by how they are handled.
type Category string

const (
	CategoryValidation  Category = "VALIDATION"
	CategoryStore       Category = "STORE"
	CategoryPersistence Category = "PERSISTENCE"
	CategoryProgramming Category = "PROGRAMMING"
	CategoryCanceled    Category = "CANCELED"
	CategoryNotFound    Category = "NOT_FOUND"
)

// Category returns the category of c.
func (c ErrorCode) Category() Category {
	switch c {
	case ErrCodeBanned, ErrCodeSizeExceeded, ErrCodeDailyLimitExceeded:
		return CategoryValidation
	case ErrCodeStoreUnavailable:
		return CategoryStore
	case ErrCodePersistenceFailure:
		return CategoryPersistence
	case ErrCodeCanceled:
		return CategoryCanceled
	case ErrCodeNotFound:
		return CategoryNotFound
	default:
		return CategoryProgramming
	}
}

func codeOfReason(reason quota.Reason) ErrorCode {
	switch reason {
	case quota.ReasonBanned:
		return ErrCodeBanned
	case quota.ReasonSizeExceeded:
		return ErrCodeSizeExceeded
	case quota.ReasonDailyLimitExceeded:
		return ErrCodeDailyLimitExceeded
	default:
		return ErrCodeProgrammingError
	}
}

// Error is a typed failure. Message is safe to show to users.
type Error struct {
	Code    ErrorCode
	Stage   Stage
	Message string
	cause   error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e == nil {
		return "ingest error: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("ingest error: %s", e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError constructs a typed error.
func NewError(code ErrorCode, stage Stage, message string, cause error) *Error {
	return &Error{Code: code, Stage: stage, Message: message, cause: cause}
}

// AsError extracts a typed error from the error chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsCode reports whether the error chain contains the given code.
func IsCode(err error, code ErrorCode) bool {
	if typed, ok := AsError(err); ok {
		return typed.Code == code
	}
	return false
}

package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for exit-status decisions.
type ErrorCategory string

const (
	ErrCatInput    ErrorCategory = "input"    // Missing, unreadable or malformed input
	ErrCatRender   ErrorCategory = "render"   // Artifact could not be produced or written
	ErrCatInternal ErrorCategory = "internal" // Unexpected internal error
)

// DomainError represents a structured error from the diagnostic engine.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError with the same category and code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrInput creates an input error.
func ErrInput(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatInput,
		Code:     code,
		Message:  message,
	}
}

// ErrRender creates a rendering error.
func ErrRender(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatRender,
		Code:     code,
		Message:  message,
	}
}

// ErrInternal creates an internal error.
func ErrInternal(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatInternal,
		Code:     code,
		Message:  message,
	}
}

// GetCategory extracts the error category. Errors that are not domain errors
// are internal.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// GetCode extracts the error code, or "" for non-domain errors.
func GetCode(err error) string {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return ""
}

// Predefined error codes
const (
	// Input error codes
	CodeEmptyInput        = "EMPTY_INPUT"
	CodeMalformedDump     = "MALFORMED_DUMP"
	CodeMissingSections   = "MISSING_SECTIONS"
	CodeInputTooLarge     = "INPUT_TOO_LARGE"
	CodeReadFailed        = "READ_FAILED"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeInvalidArgs       = "INVALID_ARGS"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeBatchFailed       = "BATCH_FAILED"

	// Render error codes
	CodeWriteFailed  = "WRITE_FAILED"
	CodeRenderFailed = "RENDER_FAILED"

	// Internal error codes
	CodePanic = "PANIC"
)

package dump

import (
	"errors"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
)

// ErrMalformed matches every error returned for a payload that cannot be
// turned into a dump.
var ErrMalformed = errors.New("malformed thread dump")

// ParseError is a fatal input error for one parse call.
type ParseError struct {
	Err *core.DomainError
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes both the domain error and ErrMalformed.
func (e *ParseError) Unwrap() []error {
	return []error{e.Err, ErrMalformed}
}

// Code returns the domain error code.
func (e *ParseError) Code() string {
	return e.Err.Code
}

func parseError(code, message string, cause error) error {
	de := core.ErrInput(code, message)
	if cause != nil {
		de = de.WithCause(cause)
	}
	return &ParseError{Err: de}
}

package pagesweep

import (
	"errors"

	"github.com/tsawler/pagesweep/reader"
)

var (
	// ErrEmptyInput is returned for a zero-length input. Nothing is parsed.
	ErrEmptyInput = errors.New("pagesweep: empty input")

	// ErrInputTooLarge is returned when the input exceeds the configured
	// maximum size.
	ErrInputTooLarge = errors.New("pagesweep: input too large")

	// ErrNoPagesKept is returned when every page is blank and
	// WithRejectEmptyOutput is set.
	ErrNoPagesKept = errors.New("pagesweep: every page is blank")

	// ErrEncrypted is wrapped in a *ParseError for password-protected
	// documents.
	ErrEncrypted = reader.ErrEncrypted
)

// ParseError reports an input that could not be read as a PDF document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "pagesweep: parse: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure to serialize the output document.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "pagesweep: write: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

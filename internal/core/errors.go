package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResult means the CSV was structurally valid but no usable rows remained.
	ErrEmptyResult = errors.New("empty file: CSV file contains no valid data")

	// ErrNotFound is returned when an upload, user, or token does not exist
	// or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrNotCSV is returned when the uploaded file name lacks a .csv extension.
	ErrNotCSV = errors.New("file must be a csv")

	// ErrInvalidCredentials is returned by Login for unknown users or wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned for missing, unknown, or expired tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrNoFile is returned when an upload request carries no file part.
	ErrNoFile = errors.New("no file provided")

	// ErrFileTooLarge is returned when an upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ParseError means the input could not be read as tabular CSV data at all.
type ParseError struct {
	Line int // 1-based line number, 0 if unknown
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SchemaError lists required columns absent from the CSV header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// RowError reports a cell that passed the null check but could not be coerced.
// Only produced under NumericAbort.
type RowError struct {
	Line   int
	Column string
	Value  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("invalid number for %q at line %d: %q", e.Column, e.Line, e.Value)
}

// ValidationError describes a rejected input field outside of CSV ingestion
// (for example a short password at registration).
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// IsClientError reports whether err was caused by bad input or a missing
// resource rather than a server-side failure.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	status := MapError(err).Status
	return status >= 400 && status < 500
}

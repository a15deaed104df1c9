// Package parsererror holds the typed errors shared by the import pipeline.
// Row-level problems are not errors (see models.RowError); these types cover
// the validation and whole-file failures that callers branch on.
package parsererror

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError through errors.Is.
var ErrValidation = errors.New("validation failed")

// ParseError represents a single cell that could not be converted.
type ParseError struct {
	Parser string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError is a rejected user action. The session state is unchanged
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field with a formatted reason.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InfrastructureError wraps failures of the file system, the repository or
// another collaborator the pipeline cannot recover from.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// CategorizationError represents a categorization failure
type CategorizationError struct {
	Transaction string
	Strategy    string
	Err         error
}

func (e *CategorizationError) Error() string {
	return fmt.Sprintf("categorization failed for %s using %s: %v",
		e.Transaction, e.Strategy, e.Err)
}

func (e *CategorizationError) Unwrap() error {
	return e.Err
}

// InvalidFormatError represents an error where the input file does not conform
// to the layout a statement reader expects.
type InvalidFormatError struct {
	FilePath             string
	ExpectedFormat       string
	ActualContentSnippet string // Optional: a snippet of the actual content for debugging
	Msg                  string
}

func (e *InvalidFormatError) Error() string {
	if e.ActualContentSnippet != "" {
		return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s. Content snippet: '%s'",
			e.FilePath, e.Msg, e.ExpectedFormat, e.ActualContentSnippet)
	}
	return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s",
		e.FilePath, e.Msg, e.ExpectedFormat)
}

// IsInfrastructure reports whether err should end an import session: an
// unreadable file, a file in the wrong format, or an unreachable repository.
func IsInfrastructure(err error) bool {
	var infra *InfrastructureError
	var format *InvalidFormatError
	return errors.As(err, &infra) || errors.As(err, &format)
}

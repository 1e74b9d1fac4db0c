// Package apperrors defines the error taxonomy for the query-resolution pipeline.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInputTooLong indicates the raw question exceeded the configured length ceiling.
	ErrInputTooLong = errors.New("question exceeds maximum length")

	// ErrEmptyQuestion indicates the raw question was empty after trimming.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// SynthesisError indicates the external translation capability failed,
// returned unusable output, or timed out.
type SynthesisError struct {
	Reason string
	Cause  error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("synthesis failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("synthesis failed: %s", e.Reason)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

// NewSynthesisError creates a SynthesisError with an optional cause.
func NewSynthesisError(reason string, cause error) *SynthesisError {
	return &SynthesisError{Reason: reason, Cause: cause}
}

// UnsafeQueryError indicates a candidate query failed static validation.
// The query is never executed; Reason describes the first violation found.
type UnsafeQueryError struct {
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("unsafe query rejected: %s", e.Reason)
}

// NewUnsafeQueryError creates an UnsafeQueryError.
func NewUnsafeQueryError(reason string) *UnsafeQueryError {
	return &UnsafeQueryError{Reason: reason}
}

// ExecutionError indicates the store rejected or timed out on an
// already-validated query.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// NewExecutionError wraps a store error.
func NewExecutionError(cause error) *ExecutionError {
	return &ExecutionError{Cause: cause}
}

// IsUserError reports whether err maps to a 4xx-equivalent outcome
// (malformed input or an unsafe candidate query), as opposed to an
// internal or upstream failure.
func IsUserError(err error) bool {
	var unsafeErr *UnsafeQueryError
	return errors.Is(err, ErrInputTooLong) ||
		errors.Is(err, ErrEmptyQuestion) ||
		errors.As(err, &unsafeErr)
}

package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when Start receives malformed or out-of-range input.
// No token is minted and the controller state is unchanged.
var ErrInvalidInput = errors.New("invalid input")

// ErrStaleToken is returned when a run acts after its token was invalidated.
var ErrStaleToken = errors.New("stale token")

// ErrUnknownAlgorithm is returned when a definition name is not registered.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotRunning is returned by commands that need an active run.
var ErrNotRunning = errors.New("no active run")

// ErrNotPaused is returned by StepOnce when the run is not paused.
var ErrNotPaused = errors.New("run is not paused")

// ValidationError describes why a start input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid is a shorthand for building a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DefinitionError reports a failure raised by an algorithm definition while
// producing or applying steps.
type DefinitionError struct {
	Algorithm string
	Seq       uint64
	Err       error
}

func (e *DefinitionError) Error() string {
	if e.Algorithm == "" {
		return fmt.Sprintf("definition failed at step %d: %v", e.Seq, e.Err)
	}
	return fmt.Sprintf("definition %q failed at step %d: %v", e.Algorithm, e.Seq, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// IsDefinitionError returns true if err wraps a DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures surfaced to the UI.
type ErrorKind string

// ErrorKind constants define the failure taxonomy.
const (
	ErrInvalidInput     ErrorKind = "InvalidInput"
	ErrResolutionFailed ErrorKind = "ResolutionFailed"
	ErrTimedOut         ErrorKind = "TimedOut"
	ErrDispatchFailed   ErrorKind = "DispatchFailed"
	ErrDownloadRejected ErrorKind = "DownloadRejected"
)

// PipelineError is a classified failure carrying an optional underlying cause.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewError builds a PipelineError.
func NewError(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

func (e *PipelineError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of the first PipelineError in err's chain.
// Unclassified errors report ErrDispatchFailed.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrDispatchFailed
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == kind
}

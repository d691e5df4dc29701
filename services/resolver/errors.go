package resolver

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAllBackendsFailed is the cause of a ResolutionError when every
	// backend in the chain failed
	ErrAllBackendsFailed = errors.New("all models failed")

	// ErrEmptyQuestion is returned when a question is blank
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

// AttemptFailure records one failed backend attempt within a resolution
type AttemptFailure struct {
	Backend  string
	Position int
	Code     string
	Reason   string

	// Elapsed is measured from the start of the resolution, not the attempt
	Elapsed time.Duration
}

// ResolutionError is returned when a question could not be classified by
// any backend in the chain
type ResolutionError struct {
	Question string
	Failures []AttemptFailure

	// Cause is ErrAllBackendsFailed, or the caller's context error when the
	// caller went away before the chain was exhausted
	Cause error
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	return e.Cause.Error()
}

// Unwrap implements error unwrapping
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Reasons returns the per-backend failure reasons in attempt order
func (e *ResolutionError) Reasons() []string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = f.Backend + ": " + f.Reason
	}
	return reasons
}

// Detail summarizes the error including every failed attempt
func (e *ResolutionError) Detail() string {
	if len(e.Failures) == 0 {
		return e.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Error(), strings.Join(e.Reasons(), "; "))
}

// BatchError is the aggregate error of an all-or-nothing batch: the first
// question that failed
type BatchError struct {
	Index    int
	Question string
	Err      error
}

// Error implements the error interface
func (e *BatchError) Error() string {
	return e.Err.Error()
}

// Unwrap implements error unwrapping
func (e *BatchError) Unwrap() error {
	return e.Err
}

// IsResolutionFailure checks if err is (or wraps) a ResolutionError
func IsResolutionFailure(err error) bool {
	var resErr *ResolutionError
	return errors.As(err, &resErr)
}

package classifier

import (
	"context"
	"errors"
	"fmt"
)

// Backend is a single classifier in a fallback chain. Implementations may be
// simulated or call a real model; the resolver only relies on this contract.
type Backend interface {
	// Name returns the backend identifier reported as provenance (e.g., "ModelA")
	Name() string

	// Classify attempts to label the answer to req.Question. A failure is
	// reported as a *BackendError.
	Classify(ctx context.Context, req *Request) (*Verdict, error)
}

// Label is the category assigned to an answer
type Label string

const (
	// LabelHuman marks an answer judged to be written by a person
	LabelHuman Label = "Human"

	// LabelAI marks an answer judged to be machine generated
	LabelAI Label = "AI"
)

// Labels lists every valid label in a stable order
var Labels = []Label{LabelHuman, LabelAI}

// Valid reports whether l is one of the known labels
func (l Label) Valid() bool {
	return l == LabelHuman || l == LabelAI
}

const (
	// MinConfidence is the inclusive lower bound of a reported confidence.
	// Anything lower would be no better than chance for two labels.
	MinConfidence = 0.5

	// MaxConfidence is the exclusive upper bound of a reported confidence
	MaxConfidence = 1.0
)

// Request is a single classification request
type Request struct {
	// Question whose answer is being classified
	Question string `json:"question"`
}

// Verdict is what a backend returns on success
type Verdict struct {
	// Model is the identifier of the backend that produced the verdict
	Model string `json:"model"`

	// Confidence lies in [MinConfidence, MaxConfidence)
	Confidence float64 `json:"confidence"`

	// Result is the assigned label
	Result Label `json:"result"`
}

// Validate checks that the verdict honors the confidence floor and label set
func (v *Verdict) Validate() error {
	if v == nil {
		return errors.New("verdict is nil")
	}
	if v.Confidence < MinConfidence || v.Confidence >= MaxConfidence {
		return fmt.Errorf("confidence %.4f outside [%.1f, %.1f)", v.Confidence, MinConfidence, MaxConfidence)
	}
	if !v.Result.Valid() {
		return fmt.Errorf("unknown label %q", v.Result)
	}
	return nil
}

// Failure codes carried by BackendError
const (
	CodeRejected       = "rejected"
	CodeTimeout        = "timeout"
	CodeCanceled       = "canceled"
	CodeInvalidVerdict = "invalid_verdict"
	CodeInternal       = "internal"
)

// BackendError represents a failed attempt on one backend
type BackendError struct {
	// Backend that generated the error
	Backend string

	// Code is the failure code
	Code string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *BackendError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// NewBackendError creates a new backend error
func NewBackendError(backend, code, message string, cause error) *BackendError {
	return &BackendError{
		Backend: backend,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AsBackendError normalizes any error returned by a Backend into a
// *BackendError attributed to backend.
func AsBackendError(backend string, err error) *BackendError {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewBackendError(backend, CodeTimeout, backend+" timed out", err)
	case errors.Is(err, context.Canceled):
		return NewBackendError(backend, CodeCanceled, backend+" canceled", err)
	default:
		return NewBackendError(backend, CodeInternal, backend+" failed", err)
	}
}

// FailureCode returns the BackendError code of err, or empty string
func FailureCode(err error) string {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Code
	}
	return ""
}

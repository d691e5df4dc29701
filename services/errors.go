package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/answer-detector/services/resolver"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeInternal   ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. Two domain errors match when they share a type
// and message, so an error built from a sentinel with Wrap matches it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// Wrap returns a copy of a sentinel domain error with err as its cause
func (e *DomainError) Wrap(err error) *DomainError {
	return NewDomainError(e.Type, e.Message, err)
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrBatchTooLarge     = NewDomainError(ErrorTypeValidation, "too many questions", nil)
	ErrModelsFailed      = NewDomainError(ErrorTypeExternal, "all models failed", nil)
	ErrResolutionTimeout = NewDomainError(ErrorTypeTimeout, "classification timed out", nil)
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// FromResolverError classifies an error returned by the resolver into a
// domain error, keeping the original as the cause
func FromResolverError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, resolver.ErrEmptyQuestion):
		return ErrInvalidInput.Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrResolutionTimeout.Wrap(err)
	case errors.Is(err, resolver.ErrAllBackendsFailed):
		wrapped := ErrModelsFailed.Wrap(err)
		var resErr *resolver.ResolutionError
		if errors.As(err, &resErr) {
			wrapped.WithDetail("question", resErr.Question)
			wrapped.WithDetail("reasons", resErr.Reasons())
		}
		var batchErr *resolver.BatchError
		if errors.As(err, &batchErr) {
			wrapped.WithDetail("index", batchErr.Index)
		}
		return wrapped
	default:
		return ErrInternal.Wrap(err)
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsExternalError checks if an error is an external backend error
func IsExternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExternal
	}
	return false
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeTimeout
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

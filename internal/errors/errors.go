package errors

import (
	"fmt"
)

// AzmigError is the structured error type for azmig.
// It provides rich context for error handling, logging, and user presentation.
type AzmigError struct {
	// Code is the unique error code (e.g., "ERR_201_PLAN_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AzmigError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AzmigError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AzmigError.
func (e *AzmigError) Is(target error) bool {
	if t, ok := target.(*AzmigError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AzmigError) WithDetail(key, value string) *AzmigError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *AzmigError) WithSuggestion(suggestion string) *AzmigError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AzmigError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AzmigError {
	return &AzmigError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AzmigError from an existing error.
// The error's message becomes the AzmigError message.
func Wrap(code string, err error) *AzmigError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AzmigError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// PlanError creates an error for invalid validation plans.
func PlanError(message string, cause error) *AzmigError {
	return New(ErrCodePlanInvalid, message, cause)
}

// SessionError creates a checkpoint-session I/O error.
func SessionError(message string, cause error) *AzmigError {
	return New(ErrCodeSessionIO, message, cause)
}

// ProviderError creates a cloud-provider reachability error.
// Provider errors are typically retryable.
func ProviderError(message string, cause error) *AzmigError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AzmigError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an AzmigError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AzmigError); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AzmigError); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AzmigError.
// Returns empty string if not an AzmigError.
func GetCode(err error) string {
	if ae, ok := err.(*AzmigError); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AzmigError.
// Returns empty string if not an AzmigError.
func GetCategory(err error) Category {
	if ae, ok := err.(*AzmigError); ok {
		return ae.Category
	}
	return ""
}

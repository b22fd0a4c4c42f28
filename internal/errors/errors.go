package errors

import (
	stderrors "errors"
	"fmt"
)

// HooplaError is the structured error type for hoopla.
// It carries a stable code plus enough context for CLI and MCP presentation.
type HooplaError struct {
	// Code is the unique error code (e.g., "ERR_207_INDEX_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *HooplaError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *HooplaError) Unwrap() error {
	return e.Cause
}

// Is matches another HooplaError by code, so errors.Is works against
// code-only sentinels.
func (e *HooplaError) Is(target error) bool {
	if t, ok := target.(*HooplaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *HooplaError) WithDetail(key, value string) *HooplaError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *HooplaError) WithSuggestion(suggestion string) *HooplaError {
	e.Suggestion = suggestion
	return e
}

// New creates a new HooplaError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *HooplaError {
	return &HooplaError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a HooplaError from an existing error.
func Wrap(code string, err error) *HooplaError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *HooplaError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *HooplaError {
	return New(ErrCodeFileNotFound, message, cause)
}

// NetworkError creates a network-related error.
func NetworkError(message string, cause error) *HooplaError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *HooplaError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *HooplaError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first HooplaError in err's chain.
func As(err error) (*HooplaError, bool) {
	var he *HooplaError
	if stderrors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsRetryable checks if an error in the chain is marked retryable.
func IsRetryable(err error) bool {
	he, ok := As(err)
	return ok && he.Retryable
}

// IsFatal checks if an error in the chain has fatal severity.
func IsFatal(err error) bool {
	he, ok := As(err)
	return ok && he.Severity == SeverityFatal
}

// GetCode extracts the error code from the first HooplaError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if he, ok := As(err); ok {
		return he.Code
	}
	return ""
}

// GetCategory extracts the category from the first HooplaError in the chain.
func GetCategory(err error) Category {
	if he, ok := As(err); ok {
		return he.Category
	}
	return ""
}

// Package errors provides the typed failure taxonomy for the OneLogin
// authentication plugin. Every Authenticator boundary returns one of these
// errors so the session controller can tell recoverable provider failures
// apart from fatal startup problems.
package errors

import (
	stderrors "errors"
	"fmt"
)

// PluginError provides additional context for error handling.
// It wraps underlying errors with error codes and actionable suggestions.
type PluginError interface {
	error
	Unwrap() error              // Original error
	Code() string               // Error code (e.g., "USER_NOT_FOUND")
	Suggestion() string         // Actionable fix suggestion
	Context() map[string]string // Additional context (username, factor id, etc.)
}

// Authentication error codes. All of these are recoverable at the session
// controller boundary: caught, logged, and converted to a uniform deny.
const (
	// ErrCodeUserNotFound means the lookup attribute matched no user.
	ErrCodeUserNotFound = "USER_NOT_FOUND"
	// ErrCodeAmbiguousUser means the lookup attribute matched more than one user.
	ErrCodeAmbiguousUser = "AMBIGUOUS_USER"
	// ErrCodeFactorNotFound means the user has no usable default MFA factor.
	ErrCodeFactorNotFound = "FACTOR_NOT_FOUND"
	// ErrCodeDirectoryError covers failed or malformed provider responses.
	ErrCodeDirectoryError = "DIRECTORY_ERROR"
	// ErrCodePushTimeout means push polling exceeded its deadline while still pending.
	ErrCodePushTimeout = "PUSH_TIMEOUT"
)

// Startup error codes.
const (
	// ErrCodeConfigurationError means credentials or client setup are invalid.
	// Fatal: it prevents the Authenticator from being constructed and is
	// never converted to a per-session deny.
	ErrCodeConfigurationError = "CONFIGURATION_ERROR"
)

// pluginError implements the PluginError interface.
type pluginError struct {
	code       string
	message    string
	suggestion string
	context    map[string]string
	cause      error
}

// Error implements the error interface.
func (e *pluginError) Error() string {
	return e.message
}

// Unwrap returns the underlying cause error.
func (e *pluginError) Unwrap() error {
	return e.cause
}

// Code returns the error code.
func (e *pluginError) Code() string {
	return e.code
}

// Suggestion returns the actionable fix suggestion.
func (e *pluginError) Suggestion() string {
	return e.suggestion
}

// Context returns additional context about the error.
func (e *pluginError) Context() map[string]string {
	return e.context
}

// New creates a new PluginError with the given code, message, suggestion, and cause.
func New(code, message, suggestion string, cause error) PluginError {
	return &pluginError{
		code:       code,
		message:    message,
		suggestion: suggestion,
		context:    make(map[string]string),
		cause:      cause,
	}
}

// WithContext adds context to an error and returns a new PluginError.
// The original error is not modified.
func WithContext(err PluginError, key, value string) PluginError {
	existingCtx := err.Context()
	newCtx := make(map[string]string, len(existingCtx)+1)
	for k, v := range existingCtx {
		newCtx[k] = v
	}
	newCtx[key] = value

	return &pluginError{
		code:       err.Code(),
		message:    err.Error(),
		suggestion: err.Suggestion(),
		context:    newCtx,
		cause:      err.Unwrap(),
	}
}

// IsPluginError checks if err is (or wraps) a PluginError and returns it.
// If err is nil or not a PluginError, returns (nil, false).
func IsPluginError(err error) (PluginError, bool) {
	if err == nil {
		return nil, false
	}
	var pe PluginError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// GetCode extracts the error code from an error.
// Returns empty string if err is not a PluginError.
func GetCode(err error) string {
	if pe, ok := IsPluginError(err); ok {
		return pe.Code()
	}
	return ""
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// NewUserNotFound creates the error for a lookup attribute with zero matches.
func NewUserNotFound(username, attribute string) PluginError {
	e := New(
		ErrCodeUserNotFound,
		fmt.Sprintf("no user found for user: %s based on attribute: %s", username, attribute),
		Suggestions[ErrCodeUserNotFound],
		nil,
	)
	e = WithContext(e, "username", username)
	return WithContext(e, "attribute", attribute)
}

// NewAmbiguousUser creates the error for a lookup attribute with more than one match.
func NewAmbiguousUser(username, attribute string) PluginError {
	e := New(
		ErrCodeAmbiguousUser,
		fmt.Sprintf("more than one user found for user: %s based on attribute: %s", username, attribute),
		Suggestions[ErrCodeAmbiguousUser],
		nil,
	)
	e = WithContext(e, "username", username)
	return WithContext(e, "attribute", attribute)
}

// NewFactorNotFound creates the error for a user with no default MFA factor.
func NewFactorNotFound(message string) PluginError {
	return New(ErrCodeFactorNotFound, message, Suggestions[ErrCodeFactorNotFound], nil)
}

// NewDirectoryError creates the error for a failed or malformed provider response.
func NewDirectoryError(message string, cause error) PluginError {
	return New(ErrCodeDirectoryError, message, Suggestions[ErrCodeDirectoryError], cause)
}

// NewPushTimeout creates the error for push polling that exceeded its deadline.
func NewPushTimeout(message string) PluginError {
	return New(ErrCodePushTimeout, message, Suggestions[ErrCodePushTimeout], nil)
}

// NewConfigurationError creates the fatal startup error for invalid
// credentials or client setup.
func NewConfigurationError(message string, cause error) PluginError {
	return New(ErrCodeConfigurationError, message, Suggestions[ErrCodeConfigurationError], cause)
}

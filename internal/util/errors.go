package util

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrTimeout       = errors.New("timeout")
	ErrNoMatch       = errors.New("path does not match route")
	ErrQueueClosed   = errors.New("fetch queue closed")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// ConfigError points at the offending configuration field. It matches
// ErrConfigInvalid.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError wrapping cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return "config error at " + e.Field + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Cause }

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// InvalidRouteError reports a pattern that cannot be compiled, or a path
// extracted against a pattern it does not match. It matches ErrInvalidInput.
type InvalidRouteError struct {
	Pattern string
	Message string
	Cause   error
}

// NewInvalidRouteError creates a new InvalidRouteError.
func NewInvalidRouteError(pattern, message string) *InvalidRouteError {
	return &InvalidRouteError{Pattern: pattern, Message: message}
}

// Error implements the error interface.
func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route %q: %s", e.Pattern, e.Message)
}

// Unwrap returns the underlying error.
func (e *InvalidRouteError) Unwrap() error { return e.Cause }

// Is checks if the error matches the target.
func (e *InvalidRouteError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*InvalidRouteError)
	return ok || errors.Is(e.Cause, target)
}

// MissingParameterError reports a URL template placeholder that has no
// value among the request parameters.
type MissingParameterError struct {
	Name     string
	Template string
}

// NewMissingParameterError creates a new MissingParameterError.
func NewMissingParameterError(name, template string) *MissingParameterError {
	return &MissingParameterError{Name: name, Template: template}
}

// Error implements the error interface.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q for template %s", e.Name, e.Template)
}

// Is checks if the error matches the target.
func (e *MissingParameterError) Is(target error) bool {
	_, ok := target.(*MissingParameterError)
	return ok
}

// TransportError is an upstream fetch that produced no usable response.
type TransportError struct {
	URL   string
	Cause error
}

// NewTransportError creates a new TransportError.
func NewTransportError(url string, cause error) *TransportError {
	return &TransportError{URL: url, Cause: cause}
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Cause == nil {
		return "fetch " + e.URL + " failed"
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Cause }

// Is checks if the error matches the target.
func (e *TransportError) Is(target error) bool {
	_, ok := target.(*TransportError)
	return ok || errors.Is(e.Cause, target)
}

// TimeoutError is an operation cut short by its deadline. It matches
// ErrTimeout.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v during %s", e.Duration, e.Operation)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error { return e.Cause }

// Is checks if the error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok || errors.Is(e.Cause, target)
}

// ContractViolationError is a transform function that returned neither an
// image nor a pending result.
type ContractViolationError struct {
	Message string
}

// NewContractViolationError creates a new ContractViolationError.
func NewContractViolationError(message string) *ContractViolationError {
	return &ContractViolationError{Message: message}
}

// Error implements the error interface.
func (e *ContractViolationError) Error() string { return e.Message }

// Is checks if the error matches the target.
func (e *ContractViolationError) Is(target error) bool {
	_, ok := target.(*ContractViolationError)
	return ok
}

// TransformError wraps a failure raised by user transform code or by
// decoding the source. Its message is the cause's, unchanged, since that is
// what the client receives.
type TransformError struct {
	Cause error
}

// NewTransformError creates a new TransformError.
func NewTransformError(cause error) *TransformError {
	return &TransformError{Cause: cause}
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	if e.Cause == nil {
		return "transform failed"
	}
	return e.Cause.Error()
}

// Unwrap returns the underlying error.
func (e *TransformError) Unwrap() error { return e.Cause }

// Is checks if the error matches the target.
func (e *TransformError) Is(target error) bool {
	_, ok := target.(*TransformError)
	return ok || errors.Is(e.Cause, target)
}

// EmitError is a failed response write. Partial is set once bytes have
// reached the client.
type EmitError struct {
	Partial bool
	Cause   error
}

// NewEmitError creates a new EmitError.
func NewEmitError(partial bool, cause error) *EmitError {
	return &EmitError{Partial: partial, Cause: cause}
}

// Error implements the error interface.
func (e *EmitError) Error() string {
	if e.Partial {
		return fmt.Sprintf("response aborted after partial write: %v", e.Cause)
	}
	return fmt.Sprintf("response write failed: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *EmitError) Unwrap() error { return e.Cause }

// Is checks if the error matches the target.
func (e *EmitError) Is(target error) bool {
	_, ok := target.(*EmitError)
	return ok || errors.Is(e.Cause, target)
}

// WrapError prefixes err with message, keeping it unwrappable. A nil err
// stays nil.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsTimeout reports whether err is or wraps a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

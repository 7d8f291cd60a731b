package util

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		field          string
		message        string
		cause          error
		expectedString string
	}{
		{
			name:           "with field",
			field:          "routes[0].pattern",
			message:        "pattern is required",
			expectedString: "config error at routes[0].pattern: pattern is required",
		},
		{
			name:           "without field",
			message:        "invalid configuration",
			expectedString: "config error: invalid configuration",
		},
		{
			name:           "with cause",
			field:          "fetch.workers",
			message:        "invalid worker count",
			cause:          errors.New("must be positive"),
			expectedString: "config error at fetch.workers: invalid worker count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err *ConfigError
			if tt.cause != nil {
				err = NewConfigErrorWithCause(tt.field, tt.message, tt.cause)
			} else {
				err = NewConfigError(tt.field, tt.message)
			}

			assert.Equal(t, tt.expectedString, err.Error())
			assert.Equal(t, tt.cause, err.Unwrap())
			assert.True(t, errors.Is(err, ErrConfigInvalid))
			if tt.cause != nil {
				assert.True(t, errors.Is(err, tt.cause))
			}
		})
	}
}

func TestInvalidRouteError(t *testing.T) {
	t.Parallel()

	err := NewInvalidRouteError("", "pattern cannot be empty")

	assert.Equal(t, `invalid route "": pattern cannot be empty`, err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	wrapped := &InvalidRouteError{Pattern: "/a/:b", Message: "no match", Cause: ErrNoMatch}
	assert.True(t, errors.Is(wrapped, ErrNoMatch))

	var target *InvalidRouteError
	assert.True(t, errors.As(fmt.Errorf("register: %w", err), &target))
}

func TestMissingParameterError(t *testing.T) {
	t.Parallel()

	err := NewMissingParameterError("size", "http://img/:size/:name")

	assert.Equal(t, `missing parameter "size" for template http://img/:size/:name`, err.Error())
	var target *MissingParameterError
	assert.True(t, errors.As(fmt.Errorf("build url: %w", err), &target))
	assert.Equal(t, "size", target.Name)
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewTransportError("http://upstream/a.jpg", cause)

	assert.Equal(t, "fetch http://upstream/a.jpg: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsTimeout(err))
	assert.Equal(t, "fetch http://upstream/a.jpg failed", NewTransportError("http://upstream/a.jpg", nil).Error())
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	cause := errors.New("i/o timeout")
	err := &TimeoutError{Operation: "upstream fetch", Duration: 2 * time.Second, Cause: cause}

	assert.Equal(t, "timeout after 2s during upstream fetch", err.Error())
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsTimeout(fmt.Errorf("fetch: %w", err)))
	assert.False(t, IsTimeout(cause))
}

func TestTransformError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cause    error
		expected string
	}{
		{name: "message is the cause message", cause: errors.New("boom"), expected: "boom"},
		{name: "nil cause", cause: nil, expected: "transform failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewTransformError(tt.cause)
			assert.Equal(t, tt.expected, err.Error())
			var target *TransformError
			assert.True(t, errors.As(err, &target))
		})
	}
}

func TestContractViolationError(t *testing.T) {
	t.Parallel()

	err := NewContractViolationError("expected an image")

	assert.Equal(t, "expected an image", err.Error())
	var violation *ContractViolationError
	assert.True(t, errors.As(err, &violation))
	var transform *TransformError
	assert.False(t, errors.As(err, &transform))
}

func TestEmitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("broken pipe")

	partial := NewEmitError(true, cause)
	assert.Equal(t, "response aborted after partial write: broken pipe", partial.Error())
	assert.True(t, errors.Is(partial, cause))

	full := NewEmitError(false, cause)
	assert.Equal(t, "response write failed: broken pipe", full.Error())
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, "context"))

	err := WrapError(ErrTimeout, "fetch")
	assert.Equal(t, "fetch: timeout", err.Error())
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestErrorTypes_IsMatchesOwnType(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	all := []error{
		&ConfigError{},
		&InvalidRouteError{},
		&MissingParameterError{},
		&TransportError{},
		&TimeoutError{},
		&ContractViolationError{},
		&TransformError{},
		&EmitError{},
	}

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "config", err: NewConfigError("routes", "empty"), target: &ConfigError{}},
		{name: "invalid route", err: NewInvalidRouteError("/:a", "bad"), target: &InvalidRouteError{}},
		{name: "missing parameter", err: NewMissingParameterError("id", "http://x/:id"), target: &MissingParameterError{}},
		{name: "transport", err: NewTransportError("http://x", cause), target: &TransportError{}},
		{name: "timeout", err: &TimeoutError{Operation: "fetch", Duration: time.Second}, target: &TimeoutError{}},
		{name: "contract", err: NewContractViolationError("expected an image"), target: &ContractViolationError{}},
		{name: "transform", err: NewTransformError(cause), target: &TransformError{}},
		{name: "emit", err: NewEmitError(false, cause), target: &EmitError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wrapped := fmt.Errorf("stage: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.target)
			for _, other := range all {
				if fmt.Sprintf("%T", other) == fmt.Sprintf("%T", tt.target) {
					continue
				}
				assert.NotErrorIs(t, tt.err, other, "%T must not match %T", tt.err, other)
			}
		})
	}
}

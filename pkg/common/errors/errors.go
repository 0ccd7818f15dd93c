package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the pacegate library

var (
	// ErrInvalidArgument indicates a constructor or operation received a bad argument
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProtocol indicates unbalanced use of an acquire/release style API
	ErrProtocol = errors.New("protocol violation")

	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrCapacityExceeded indicates that a capacity limit was exceeded
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// ValidationError describes an argument rejected at construction time.
// It wraps ErrInvalidArgument.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// ProtocolError reports a release without a matching acquire, a release of a
// handle issued elsewhere, or a similar misuse. It wraps ErrProtocol.
type ProtocolError struct {
	Module    string
	Operation string
	Reason    string
}

// NewProtocolError creates a ProtocolError.
func NewProtocolError(module, operation, reason string) *ProtocolError {
	return &ProtocolError{
		Module:    module,
		Operation: operation,
		Reason:    reason,
	}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Module, e.Operation, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// OperationError wraps a failure of a runtime operation with the module and
// operation it happened in.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches extra detail and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsProtocolError reports whether err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr)
}

// IsTemporary returns true if the error indicates a temporary condition
func IsTemporary(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

package gateway

import (
	"errors"
	"fmt"
)

// Error codes for payment gateway failures.
const (
	// ErrCodeUnavailable indicates the payment node could not be
	// reached or answered with an unexpected status: network error,
	// timeout or non-2xx response.
	ErrCodeUnavailable = "GATEWAY_UNAVAILABLE"

	// ErrCodePaymentFailed indicates the node was reachable but
	// reported that the payment itself failed (no route, rejected,
	// expired request).
	ErrCodePaymentFailed = "PAYMENT_FAILED"
)

// Error represents a gateway failure with a typed code, so callers can
// distinguish "node down" from "payment refused" without matching on
// message strings.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Predefined sentinel errors for use with errors.Is().
var (
	// ErrUnavailable is returned when the payment node is unreachable.
	ErrUnavailable = NewError(ErrCodeUnavailable, "payment gateway unavailable")

	// ErrPaymentFailed is returned when the node reports a failed
	// payment.
	ErrPaymentFailed = NewError(ErrCodePaymentFailed, "payment failed")
)

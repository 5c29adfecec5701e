package credential

import (
	"errors"
	"fmt"
)

// Error codes for credential verification failures. These are
// protocol-level codes, not HTTP status codes.
const (
	// ErrCodePaymentNotVerified indicates the claimed settlement
	// secret does not hash to the credential's identifier.
	ErrCodePaymentNotVerified = "PAYMENT_NOT_VERIFIED"

	// ErrCodeResourceMismatch indicates the credential is scoped to a
	// different resource than the one requested.
	ErrCodeResourceMismatch = "RESOURCE_MISMATCH"

	// ErrCodeExpired indicates the credential's expires_at caveat is
	// in the past.
	ErrCodeExpired = "CREDENTIAL_EXPIRED"

	// ErrCodeSignatureInvalid indicates the HMAC chain does not match:
	// the credential was not issued by this server or was tampered
	// with.
	ErrCodeSignatureInvalid = "SIGNATURE_INVALID"

	// ErrCodeTokenMalformed indicates a presented token or serialized
	// credential could not be parsed.
	ErrCodeTokenMalformed = "TOKEN_MALFORMED"
)

// Error represents a credential failure with a protocol error code.
type Error struct {
	// Code is one of the error code constants above.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
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
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Predefined sentinel errors for use with errors.Is().
var (
	// ErrPaymentNotVerified is returned when the secret does not match
	// the payment commitment.
	ErrPaymentNotVerified = NewError(ErrCodePaymentNotVerified, "settlement secret does not match payment commitment")

	// ErrResourceMismatch is returned when the credential is scoped to
	// another resource.
	ErrResourceMismatch = NewError(ErrCodeResourceMismatch, "credential is scoped to a different resource")

	// ErrExpired is returned when the credential has expired.
	ErrExpired = NewError(ErrCodeExpired, "credential has expired")

	// ErrSignatureInvalid is returned when the HMAC chain does not
	// verify.
	ErrSignatureInvalid = NewError(ErrCodeSignatureInvalid, "credential signature verification failed")

	// ErrTokenMalformed is returned when a token cannot be parsed.
	ErrTokenMalformed = NewError(ErrCodeTokenMalformed, "token is malformed")
)

// AsError checks if err is an Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var credErr *Error
	if errors.As(err, &credErr) {
		return credErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an Error, or returns empty
// string.
func GetErrorCode(err error) string {
	if credErr, ok := AsError(err); ok {
		return credErr.Code
	}
	return ""
}

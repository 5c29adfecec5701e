package agent

import (
	"errors"
	"fmt"
)

// Error codes for agent-side failures.
const (
	// ErrCodeBudgetExceeded indicates the payment would push total
	// spend past the configured ceiling. The gateway is never
	// contacted in this case, and the attempt must not be retried
	// automatically.
	ErrCodeBudgetExceeded = "BUDGET_EXCEEDED"

	// ErrCodeLedgerWriteFailed indicates a completed payment could not
	// be recorded. This is fatal to the invocation: an unrecorded
	// successful payment corrupts the budget invariant.
	ErrCodeLedgerWriteFailed = "LEDGER_WRITE_FAILED"
)

// Error represents an agent failure with a typed code.
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
	// ErrBudgetExceeded is returned when a settlement would exceed the
	// budget ceiling.
	ErrBudgetExceeded = NewError(ErrCodeBudgetExceeded, "settlement would exceed budget ceiling")

	// ErrLedgerWriteFailed is returned when a completed payment could
	// not be persisted.
	ErrLedgerWriteFailed = NewError(ErrCodeLedgerWriteFailed, "failed to record completed payment")
)

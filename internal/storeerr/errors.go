// Package storeerr defines the stable error taxonomy of purchase operations
// and the classifier that maps heterogeneous failure causes onto it.
//
// Reconciliation never fails, so nothing in this package is used by the
// reconciler. Purchase, restore and refund flows surface *Error values to
// their callers; the update listener only logs them.
package storeerr

import (
	"errors"
	"fmt"
)

// Code identifies an error category. Values are stable and safe to persist
// or send over the wire.
type Code string

const (
	CodeUnknown                 Code = "unknown"
	CodeUserCancelled           Code = "userCancelled"
	CodeInvalidProductID        Code = "invalidProductId"
	CodeNetworkError            Code = "networkError"
	CodeInvalidPurchase         Code = "invalidPurchase"
	CodeProductNotAvailable     Code = "productNotAvailable"
	CodePurchaseNotAllowed      Code = "purchaseNotAllowed"
	CodeVerificationFailed      Code = "verificationFailed"
	CodePending                 Code = "pending"
	CodeReceiptValidationFailed Code = "receiptValidationFailed"
)

// Codes lists every code in the taxonomy.
var Codes = []Code{
	CodeUnknown,
	CodeUserCancelled,
	CodeInvalidProductID,
	CodeNetworkError,
	CodeInvalidPurchase,
	CodeProductNotAvailable,
	CodePurchaseNotAllowed,
	CodeVerificationFailed,
	CodePending,
	CodeReceiptValidationFailed,
}

// Error is a classified purchase error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Cause is the underlying failure, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error with the given code around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeUnknown when there is none. A nil error has no code and returns "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsUserCancelled reports whether err is a user cancellation. Callers
// conventionally treat it as silent: no error UI.
func IsUserCancelled(err error) bool {
	return IsCode(err, CodeUserCancelled)
}

// IsVerificationFailed reports whether err is a verification failure.
func IsVerificationFailed(err error) bool {
	return IsCode(err, CodeVerificationFailed)
}

package storeerr

import (
	"context"
	"errors"
	"net"
)

// Cause is a failure cause reported by a collaborator, before
// classification.
type Cause string

const (
	CauseCancelled             Cause = "cancelled"
	CausePending               Cause = "pending"
	CauseNetworkFailure        Cause = "networkFailure"
	CauseEntitlementDenied     Cause = "entitlementDenied"
	CauseStorefrontUnavailable Cause = "storefrontUnavailable"
	CauseUnknown               Cause = "unknown"
)

var causeCodes = map[Cause]Code{
	CauseCancelled:             CodeUserCancelled,
	CausePending:               CodePending,
	CauseNetworkFailure:        CodeNetworkError,
	CauseEntitlementDenied:     CodePurchaseNotAllowed,
	CauseStorefrontUnavailable: CodeProductNotAvailable,
	CauseUnknown:               CodeUnknown,
}

// CodeFor maps a cause to its taxonomy code. Unrecognized causes map to
// CodeUnknown.
func CodeFor(c Cause) Code {
	if code, ok := causeCodes[c]; ok {
		return code
	}
	return CodeUnknown
}

// CauseError is returned by collaborators that know why they failed.
type CauseError struct {
	Cause   Cause
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CauseError) Error() string {
	msg := string(e.Cause)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CauseError) Unwrap() error {
	return e.Err
}

// Classify maps any error onto the taxonomy. It is a pure function:
//   - nil stays nil
//   - an *Error already in the chain is returned unchanged
//   - a *CauseError maps through CodeFor
//   - context cancellation maps to userCancelled
//   - deadlines and net.Error values map to networkError
//   - anything else is unknown
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return se
	}

	var ce *CauseError
	if errors.As(err, &ce) {
		msg := ce.Message
		if msg == "" {
			msg = string(ce.Cause)
		}
		return Wrap(CodeFor(ce.Cause), msg, err)
	}

	if errors.Is(err, context.Canceled) {
		return Wrap(CodeUserCancelled, "operation cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeNetworkError, "operation timed out", err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return Wrap(CodeNetworkError, "network failure", err)
	}

	return Wrap(CodeUnknown, "unclassified failure", err)
}

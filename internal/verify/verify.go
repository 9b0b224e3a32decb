// Package verify implements the verification gate: the first step every
// stream element passes through.
//
// Signature checking itself is delegated to an external verifier; the gate
// only interprets the verifier's verdict. An unverified element is an
// expected outcome and comes back as an error value, never a panic.
package verify

import (
	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/storeerr"
)

// Check passes a verified payload through unchanged. An unverified payload
// yields a verificationFailed *storeerr.Error carrying the verifier's cause.
func Check(result model.VerificationResult) (model.RawTransaction, error) {
	if result.Verified {
		return result.Payload, nil
	}

	cause := result.Cause
	if cause == "" {
		cause = "verifier gave no reason"
	}
	return model.RawTransaction{}, &storeerr.Error{
		Code:    storeerr.CodeVerificationFailed,
		Message: "transaction " + describe(result.Payload) + " failed verification: " + cause,
	}
}

func describe(p model.RawTransaction) string {
	if p.TransactionID == "" {
		return "<no id>"
	}
	return p.TransactionID
}

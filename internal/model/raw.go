package model

// RawTransaction is the platform-shaped payload of a decoded transaction, as
// handed over by the bridge. Instants are Unix milliseconds; enum fields are
// the platform's own strings and may hold values this version does not know.
type RawTransaction struct {
	TransactionID               string `json:"transactionId" yaml:"transactionId"`
	OriginalTransactionID       string `json:"originalTransactionId,omitempty" yaml:"originalTransactionId,omitempty"`
	ProductID                   string `json:"productId" yaml:"productId"`
	SubscriptionGroupIdentifier string `json:"subscriptionGroupIdentifier,omitempty" yaml:"subscriptionGroupIdentifier,omitempty"`
	Type                        string `json:"type,omitempty" yaml:"type,omitempty"`
	PurchaseDate                int64  `json:"purchaseDate" yaml:"purchaseDate"`
	ExpiresDate                 *int64 `json:"expiresDate,omitempty" yaml:"expiresDate,omitempty"`
	RevocationDate              *int64 `json:"revocationDate,omitempty" yaml:"revocationDate,omitempty"`
	IsUpgraded                  bool   `json:"isUpgraded,omitempty" yaml:"isUpgraded,omitempty"`
	OfferIdentifier             string `json:"offerIdentifier,omitempty" yaml:"offerIdentifier,omitempty"`
	OfferType                   *int   `json:"offerType,omitempty" yaml:"offerType,omitempty"`
	Environment                 string `json:"environment,omitempty" yaml:"environment,omitempty"`
	InAppOwnershipType          string `json:"inAppOwnershipType,omitempty" yaml:"inAppOwnershipType,omitempty"`
}

// RawRenewalInfo is the platform-shaped renewal-info payload.
type RawRenewalInfo struct {
	ProductID              string `json:"productId" yaml:"productId"`
	AutoRenewProductID     string `json:"autoRenewProductId,omitempty" yaml:"autoRenewProductId,omitempty"`
	AutoRenewStatus        int    `json:"autoRenewStatus" yaml:"autoRenewStatus"`
	ExpirationIntent       *int   `json:"expirationIntent,omitempty" yaml:"expirationIntent,omitempty"`
	GracePeriodExpiresDate *int64 `json:"gracePeriodExpiresDate,omitempty" yaml:"gracePeriodExpiresDate,omitempty"`
	IsInBillingRetryPeriod bool   `json:"isInBillingRetryPeriod,omitempty" yaml:"isInBillingRetryPeriod,omitempty"`
	OfferIdentifier        string `json:"offerIdentifier,omitempty" yaml:"offerIdentifier,omitempty"`
	OfferType              *int   `json:"offerType,omitempty" yaml:"offerType,omitempty"`
}

// VerificationResult is one element of a transaction stream: either a
// verified payload or an unverified payload together with the reason the
// external verifier rejected it.
type VerificationResult struct {
	Verified bool           `json:"verified" yaml:"verified"`
	Payload  RawTransaction `json:"payload" yaml:"payload"`
	Cause    string         `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// Verified wraps a payload the external verifier accepted.
func Verified(p RawTransaction) VerificationResult {
	return VerificationResult{Verified: true, Payload: p}
}

// Unverified wraps a payload the external verifier rejected.
func Unverified(p RawTransaction, cause string) VerificationResult {
	return VerificationResult{Verified: false, Payload: p, Cause: cause}
}

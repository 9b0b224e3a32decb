package model

// Environment is the storefront environment a transaction was issued in.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentBuildTool  Environment = "buildTool"
	EnvironmentUnknown    Environment = "unknown"
)

// OwnershipType tells whether the buyer owns the transaction or received it
// through family sharing.
type OwnershipType string

const (
	OwnershipPurchased    OwnershipType = "purchased"
	OwnershipFamilyShared OwnershipType = "familyShared"
	OwnershipUnknown      OwnershipType = "unknown"
)

// OfferType classifies a redeemed subscription offer.
type OfferType string

const (
	OfferIntroductory OfferType = "introductory"
	OfferPromotional  OfferType = "promotional"
	OfferUnknown      OfferType = "unknown"
)

// ProductType is the catalog kind of a product.
type ProductType string

const (
	ProductConsumable                ProductType = "consumable"
	ProductNonConsumable             ProductType = "nonConsumable"
	ProductAutoRenewableSubscription ProductType = "autoRenewableSubscription"
	ProductNonRenewingSubscription   ProductType = "nonRenewingSubscription"
	ProductUnknown                   ProductType = "unknown"
)

// IsSubscription reports whether the product type carries an expiration.
func (t ProductType) IsSubscription() bool {
	return t == ProductAutoRenewableSubscription || t == ProductNonRenewingSubscription
}

// SubscriptionState is the projected state of a subscription.
type SubscriptionState string

const (
	StateSubscribed     SubscriptionState = "subscribed"
	StateExpired        SubscriptionState = "expired"
	StateInGracePeriod  SubscriptionState = "inGracePeriod"
	StateInBillingRetry SubscriptionState = "inBillingRetryPeriod"
	StateRevoked        SubscriptionState = "revoked"
	StateUnknown        SubscriptionState = "unknown"
)

// ExpirationReason explains why a subscription stopped renewing.
type ExpirationReason string

const (
	ReasonAutoRenewDisabled          ExpirationReason = "autoRenewDisabled"
	ReasonBillingError               ExpirationReason = "billingError"
	ReasonDidNotConsentToPriceChange ExpirationReason = "didNotConsentToPriceIncrease"
	ReasonProductUnavailable         ExpirationReason = "productUnavailable"
	ReasonUnknown                    ExpirationReason = "unknown"
)

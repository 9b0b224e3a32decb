// Package normalize converts platform-shaped payloads into the canonical
// model types.
//
// Every function here is a deterministic, pure mapping. Platform enum values
// this version does not recognize map to the explicit "unknown" variant so a
// new storefront value never stops the pipeline.
package normalize

import (
	"strings"
	"time"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/storeerr"
)

// Validate rejects payloads that cannot identify what they grant. It runs
// before Transaction so the reconciler is never fed an anonymous record.
func Validate(raw model.RawTransaction) error {
	if strings.TrimSpace(raw.TransactionID) == "" {
		return storeerr.New(storeerr.CodeInvalidPurchase, "transaction payload has no transaction id")
	}
	if strings.TrimSpace(raw.ProductID) == "" {
		return storeerr.New(storeerr.CodeInvalidPurchase, "transaction "+raw.TransactionID+" has no product id")
	}
	return nil
}

// Transaction maps a verified raw payload to the canonical Transaction.
func Transaction(raw model.RawTransaction) model.Transaction {
	return model.Transaction{
		ID:                  raw.TransactionID,
		OriginalID:          raw.OriginalTransactionID,
		ProductID:           raw.ProductID,
		SubscriptionGroupID: raw.SubscriptionGroupIdentifier,
		ProductType:         ProductType(raw.Type),
		PurchaseDate:        instant(raw.PurchaseDate),
		ExpirationDate:      optionalInstant(raw.ExpiresDate),
		RevocationDate:      optionalInstant(raw.RevocationDate),
		IsUpgraded:          raw.IsUpgraded,
		Offer:               offer(raw.OfferIdentifier, raw.OfferType),
		Environment:         Environment(raw.Environment),
		OwnershipType:       OwnershipType(raw.InAppOwnershipType),
	}
}

// RenewalInfo maps a raw renewal-info payload to the canonical RenewalInfo.
func RenewalInfo(raw model.RawRenewalInfo) model.RenewalInfo {
	info := model.RenewalInfo{
		ProductID:                 raw.ProductID,
		AutoRenewProductID:        raw.AutoRenewProductID,
		WillAutoRenew:             raw.AutoRenewStatus == 1,
		GracePeriodExpirationDate: optionalInstant(raw.GracePeriodExpiresDate),
		IsInBillingRetryPeriod:    raw.IsInBillingRetryPeriod,
		Offer:                     offer(raw.OfferIdentifier, raw.OfferType),
	}
	if raw.ExpirationIntent != nil {
		reason := ExpirationReason(*raw.ExpirationIntent)
		info.ExpirationReason = &reason
	}
	return info
}

// Environment maps the platform environment string. An absent value (older
// payload shape) is treated as sandbox: an unknown environment is never
// silently granted production trust.
func Environment(s string) model.Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return model.EnvironmentSandbox
	case "production":
		return model.EnvironmentProduction
	case "sandbox":
		return model.EnvironmentSandbox
	case "xcode", "buildtool", "build-tool", "localtesting":
		return model.EnvironmentBuildTool
	default:
		return model.EnvironmentUnknown
	}
}

// OwnershipType maps the platform ownership string. Payloads that predate
// family sharing carry no ownership and are treated as purchased.
func OwnershipType(s string) model.OwnershipType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PURCHASED":
		return model.OwnershipPurchased
	case "FAMILY_SHARED", "FAMILYSHARED":
		return model.OwnershipFamilyShared
	default:
		return model.OwnershipUnknown
	}
}

// ProductType maps the platform product type string.
func ProductType(s string) model.ProductType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "consumable":
		return model.ProductConsumable
	case "non-consumable", "nonconsumable":
		return model.ProductNonConsumable
	case "auto-renewable subscription", "autorenewable", "autorenewablesubscription":
		return model.ProductAutoRenewableSubscription
	case "non-renewing subscription", "nonrenewable", "nonrenewingsubscription":
		return model.ProductNonRenewingSubscription
	default:
		return model.ProductUnknown
	}
}

// OfferType maps the platform's numeric offer type.
func OfferType(v int) model.OfferType {
	switch v {
	case 1:
		return model.OfferIntroductory
	case 2:
		return model.OfferPromotional
	default:
		return model.OfferUnknown
	}
}

// ExpirationReason maps the platform's numeric expiration intent.
func ExpirationReason(v int) model.ExpirationReason {
	switch v {
	case 1:
		return model.ReasonAutoRenewDisabled
	case 2:
		return model.ReasonBillingError
	case 3:
		return model.ReasonDidNotConsentToPriceChange
	case 4:
		return model.ReasonProductUnavailable
	default:
		return model.ReasonUnknown
	}
}

// offer returns nil when the payload names no offer type: an absent offer
// is absent as a whole, never an empty id with a type or vice versa.
func offer(id string, typ *int) *model.Offer {
	if typ == nil {
		return nil
	}
	return &model.Offer{ID: id, Type: OfferType(*typ)}
}

func instant(msec int64) time.Time {
	return time.UnixMilli(msec).UTC()
}

func optionalInstant(msec *int64) *time.Time {
	if msec == nil {
		return nil
	}
	t := instant(*msec)
	return &t
}

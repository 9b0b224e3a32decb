package model

import (
	"github.com/cockroachdb/apd/v3"
)

// Product is a catalog entry. Catalog entries are immutable for the lifetime
// of a session; refreshes replace the whole cache.
type Product struct {
	ID               string            `json:"id"`
	DisplayName      string            `json:"display_name"`
	Description      string            `json:"description"`
	Price            apd.Decimal       `json:"price"`
	PriceFormatted   string            `json:"price_formatted"`
	CurrencyCode     string            `json:"currency_code"`
	Type             ProductType       `json:"type"`
	SubscriptionInfo *SubscriptionInfo `json:"subscription_info,omitempty"`
}

// GroupID returns the subscription group of the product, or "" when the
// product is not a subscription.
func (p Product) GroupID() string {
	if p.SubscriptionInfo == nil {
		return ""
	}
	return p.SubscriptionInfo.GroupID
}

// SubscriptionInfo describes the subscription terms of a product.
type SubscriptionInfo struct {
	GroupID           string              `json:"group_id"`
	Period            string              `json:"period"` // ISO 8601 duration, e.g. "P1M"
	IntroductoryOffer *SubscriptionOffer  `json:"introductory_offer,omitempty"`
	PromotionalOffers []SubscriptionOffer `json:"promotional_offers,omitempty"`
}

// SubscriptionOffer is one introductory or promotional offer.
type SubscriptionOffer struct {
	ID          string      `json:"id,omitempty"`
	Type        OfferType   `json:"type"`
	Price       apd.Decimal `json:"price"`
	Period      string      `json:"period"`
	PeriodCount int         `json:"period_count"`
	PaymentMode string      `json:"payment_mode"`
}

// ParsePrice parses a decimal price such as "4.99".
func ParsePrice(s string) (apd.Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return apd.Decimal{}, err
	}
	return d, nil
}

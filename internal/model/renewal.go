package model

import "time"

// RenewalInfo holds facts about the future renewal of a subscription, as
// reported by the storefront. It is keyed by product id.
type RenewalInfo struct {
	ProductID                 string            `json:"product_id"`
	AutoRenewProductID        string            `json:"auto_renew_product_id,omitempty"`
	WillAutoRenew             bool              `json:"will_auto_renew"`
	ExpirationReason          *ExpirationReason `json:"expiration_reason,omitempty"`
	GracePeriodExpirationDate *time.Time        `json:"grace_period_expiration_date,omitempty"`
	IsInBillingRetryPeriod    bool              `json:"is_in_billing_retry_period"`
	Offer                     *Offer            `json:"offer,omitempty"`
}

// InGracePeriodAt reports whether a grace window is open at now.
func (r RenewalInfo) InGracePeriodAt(now time.Time) bool {
	return r.GracePeriodExpirationDate != nil && r.GracePeriodExpirationDate.After(now)
}

// ProductHistory is one product's transactions and resolved subscription
// group, read together from a single EntitlementSet version.
type ProductHistory struct {
	ProductID    string
	GroupID      string        // "" when the product belongs to no known group
	Transactions []Transaction // newest first
}

// GroupOf returns the group tx belongs to: its own group id, else the
// product's.
func (h ProductHistory) GroupOf(tx Transaction) string {
	if tx.SubscriptionGroupID != "" {
		return tx.SubscriptionGroupID
	}
	return h.GroupID
}

// SubscriptionStatus is derived on every query from the reconciled
// transactions plus renewal facts. It is never stored.
type SubscriptionStatus struct {
	ProductID   string            `json:"product_id"`
	GroupID     string            `json:"group_id,omitempty"`
	State       SubscriptionState `json:"state"`
	RenewalInfo *RenewalInfo      `json:"renewal_info,omitempty"`
	Transaction *Transaction      `json:"transaction,omitempty"`
}

package model

import (
	"strings"
	"time"
)

// Offer identifies a redeemed offer. A transaction without an offer carries a
// nil *Offer rather than empty strings.
type Offer struct {
	ID   string    `json:"id" yaml:"id"`
	Type OfferType `json:"type" yaml:"type"`
}

// Transaction is the immutable record of one ownership-granting event.
//
// Supersession is modeled by choosing which Transaction governs a product,
// never by editing one. Treat values as read-only once normalized.
type Transaction struct {
	ID                  string        `json:"id"`
	OriginalID          string        `json:"original_id,omitempty"`
	ProductID           string        `json:"product_id"`
	SubscriptionGroupID string        `json:"subscription_group_id,omitempty"`
	ProductType         ProductType   `json:"product_type"`
	PurchaseDate        time.Time     `json:"purchase_date"`
	ExpirationDate      *time.Time    `json:"expiration_date,omitempty"`
	RevocationDate      *time.Time    `json:"revocation_date,omitempty"`
	IsUpgraded          bool          `json:"is_upgraded"`
	Offer               *Offer        `json:"offer,omitempty"`
	Environment         Environment   `json:"environment"`
	OwnershipType       OwnershipType `json:"ownership_type"`
}

// IsRevoked reports whether the transaction was refunded or revoked.
func (t Transaction) IsRevoked() bool {
	return t.RevocationDate != nil
}

// IsExpiredAt reports whether the transaction carries an expiration that is
// not after now. Transactions without expiration never expire.
func (t Transaction) IsExpiredAt(now time.Time) bool {
	return t.ExpirationDate != nil && !t.ExpirationDate.After(now)
}

// IsActiveAt reports whether the transaction grants access at now: not
// revoked, not upgraded away and not expired.
func (t Transaction) IsActiveAt(now time.Time) bool {
	return !t.IsRevoked() && !t.IsUpgraded && !t.IsExpiredAt(now)
}

// Newer reports whether a supersedes b under the tie-break order:
// later PurchaseDate wins; on equal PurchaseDate the larger ID wins.
//
// The order is total over distinct IDs, which is what makes reconciliation
// independent of arrival order.
func Newer(a, b Transaction) bool {
	if !a.PurchaseDate.Equal(b.PurchaseDate) {
		return a.PurchaseDate.After(b.PurchaseDate)
	}
	return CompareIDs(a.ID, b.ID) > 0
}

// CompareIDs orders transaction ids as the issuing authority assigns them.
// Ids made only of decimal digits compare numerically regardless of length;
// anything else falls back to byte-wise comparison. Numerically equal ids
// with different zero padding fall back to byte-wise comparison too, so
// CompareIDs returns 0 only for identical strings.
func CompareIDs(a, b string) int {
	if isDigits(a) && isDigits(b) {
		ta := strings.TrimLeft(a, "0")
		tb := strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			if len(ta) < len(tb) {
				return -1
			}
			return 1
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

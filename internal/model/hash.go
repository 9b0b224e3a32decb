package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows the canonical form
// to change without colliding with old digests.
const (
	DomainTransaction    = "entitle/transaction/v1"
	DomainEntitlementSet = "entitle/entitlement-set/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null separator keeps the domain/data boundary unambiguous.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Canonical returns the transaction as a map accepted by MarshalCanonical.
// Instants are Unix milliseconds; absent optional fields are omitted.
func (t Transaction) Canonical() map[string]any {
	obj := map[string]any{
		"id":             t.ID,
		"product_id":     t.ProductID,
		"product_type":   string(t.ProductType),
		"purchase_date":  t.PurchaseDate.UnixMilli(),
		"is_upgraded":    t.IsUpgraded,
		"environment":    string(t.Environment),
		"ownership_type": string(t.OwnershipType),
	}
	if t.OriginalID != "" {
		obj["original_id"] = t.OriginalID
	}
	if t.SubscriptionGroupID != "" {
		obj["subscription_group_id"] = t.SubscriptionGroupID
	}
	if t.ExpirationDate != nil {
		obj["expiration_date"] = t.ExpirationDate.UnixMilli()
	}
	if t.RevocationDate != nil {
		obj["revocation_date"] = t.RevocationDate.UnixMilli()
	}
	if t.Offer != nil {
		obj["offer"] = map[string]any{"id": t.Offer.ID, "type": string(t.Offer.Type)}
	}
	return obj
}

// Digest returns the content digest of the transaction. Two deliveries of the
// same transaction id with different content (a later refund, say) have
// different digests.
func (t Transaction) Digest() (string, error) {
	data, err := MarshalCanonical(t.Canonical())
	if err != nil {
		return "", fmt.Errorf("transaction %s digest: %w", t.ID, err)
	}
	return HashWithDomain(DomainTransaction, data), nil
}

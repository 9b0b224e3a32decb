package testutil

import (
	"time"

	"github.com/roach88/entitle/internal/model"
)

// TxOption customizes a transaction built by Tx.
type TxOption func(*model.Transaction)

// Tx builds a production, purchased transaction with the given id, product
// and purchase instant in Unix milliseconds.
//
// Example:
//
//	Tx("1", "com.app.sub", 1000, Expires(2000), Group("g1"))
func Tx(id, productID string, purchaseMilli int64, opts ...TxOption) model.Transaction {
	tx := model.Transaction{
		ID:            id,
		ProductID:     productID,
		ProductType:   model.ProductNonConsumable,
		PurchaseDate:  Millis(purchaseMilli),
		Environment:   model.EnvironmentProduction,
		OwnershipType: model.OwnershipPurchased,
	}
	for _, opt := range opts {
		opt(&tx)
	}
	return tx
}

// Expires marks the transaction as an auto-renewable subscription expiring
// at the given Unix millisecond.
func Expires(unixMilli int64) TxOption {
	return func(tx *model.Transaction) {
		t := Millis(unixMilli)
		tx.ExpirationDate = &t
		tx.ProductType = model.ProductAutoRenewableSubscription
	}
}

// Revoked sets the revocation instant.
func Revoked(unixMilli int64) TxOption {
	return func(tx *model.Transaction) {
		t := Millis(unixMilli)
		tx.RevocationDate = &t
	}
}

// Upgraded flags the transaction as superseded by an upgrade.
func Upgraded() TxOption {
	return func(tx *model.Transaction) {
		tx.IsUpgraded = true
	}
}

// Group sets the subscription group id.
func Group(groupID string) TxOption {
	return func(tx *model.Transaction) {
		tx.SubscriptionGroupID = groupID
	}
}

// FamilyShared marks the transaction as received through family sharing.
func FamilyShared() TxOption {
	return func(tx *model.Transaction) {
		tx.OwnershipType = model.OwnershipFamilyShared
	}
}

// Millis converts Unix milliseconds to a UTC time.Time.
func Millis(unixMilli int64) time.Time {
	return time.UnixMilli(unixMilli).UTC()
}

// Permutations returns every ordering of txs. Intended for small batches in
// order-independence tests; n! grows quickly.
func Permutations(txs []model.Transaction) [][]model.Transaction {
	if len(txs) <= 1 {
		return [][]model.Transaction{append([]model.Transaction(nil), txs...)}
	}

	var out [][]model.Transaction
	for i := range txs {
		rest := make([]model.Transaction, 0, len(txs)-1)
		rest = append(rest, txs[:i]...)
		rest = append(rest, txs[i+1:]...)
		for _, perm := range Permutations(rest) {
			out = append(out, append([]model.Transaction{txs[i]}, perm...))
		}
	}
	return out
}

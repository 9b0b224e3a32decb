package app

import (
	"context"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/source"
)

// Catalog fetches product metadata. It may fail with networkError or
// invalidProductId.
type Catalog interface {
	Fetch(ctx context.Context, ids []string) ([]model.Product, error)
}

// Purchaser starts a purchase with the storefront and returns the
// verifier's verdict on the resulting transaction.
type Purchaser interface {
	InitiatePurchase(ctx context.Context, productID, offerID string) (model.VerificationResult, error)
}

// RefundResult is the outcome of a refund request.
type RefundResult string

const (
	RefundSuccess       RefundResult = "success"
	RefundUserCancelled RefundResult = "userCancelled"
	RefundUnknown       RefundResult = "unknown"
)

// Refunder asks the storefront to start a refund.
type Refunder interface {
	BeginRefund(ctx context.Context, transactionID string) (RefundResult, error)
}

// EntitlementSource opens the finite current-entitlements stream.
type EntitlementSource interface {
	CurrentEntitlements(ctx context.Context) (source.Stream, error)
}

// EntitlementSourceFunc adapts a function to EntitlementSource.
type EntitlementSourceFunc func(ctx context.Context) (source.Stream, error)

// CurrentEntitlements implements EntitlementSource.
func (f EntitlementSourceFunc) CurrentEntitlements(ctx context.Context) (source.Stream, error) {
	return f(ctx)
}

// FixtureSource serves the current-entitlements stream from a YAML file.
type FixtureSource string

// CurrentEntitlements implements EntitlementSource.
func (path FixtureSource) CurrentEntitlements(context.Context) (source.Stream, error) {
	return source.LoadFixture(string(path))
}

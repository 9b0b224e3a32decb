package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/storeerr"
)

func i64(v int64) *int64 { return &v }
func intp(v int) *int    { return &v }

func TestTransaction_FullPayload(t *testing.T) {
	raw := model.RawTransaction{
		TransactionID:               "2000000001",
		OriginalTransactionID:       "2000000000",
		ProductID:                   "com.app.sub.monthly",
		SubscriptionGroupIdentifier: "21000001",
		Type:                        "Auto-Renewable Subscription",
		PurchaseDate:                1000,
		ExpiresDate:                 i64(2000),
		IsUpgraded:                  true,
		OfferIdentifier:             "spring",
		OfferType:                   intp(2),
		Environment:                 "Production",
		InAppOwnershipType:          "FAMILY_SHARED",
	}

	tx := Transaction(raw)

	assert.Equal(t, "2000000001", tx.ID)
	assert.Equal(t, "2000000000", tx.OriginalID)
	assert.Equal(t, "com.app.sub.monthly", tx.ProductID)
	assert.Equal(t, "21000001", tx.SubscriptionGroupID)
	assert.Equal(t, model.ProductAutoRenewableSubscription, tx.ProductType)
	assert.True(t, tx.PurchaseDate.Equal(time.UnixMilli(1000)))
	require.NotNil(t, tx.ExpirationDate)
	assert.True(t, tx.ExpirationDate.Equal(time.UnixMilli(2000)))
	assert.Nil(t, tx.RevocationDate)
	assert.True(t, tx.IsUpgraded)
	assert.Equal(t, &model.Offer{ID: "spring", Type: model.OfferPromotional}, tx.Offer)
	assert.Equal(t, model.EnvironmentProduction, tx.Environment)
	assert.Equal(t, model.OwnershipFamilyShared, tx.OwnershipType)
}

func TestTransaction_AbsentOfferTypeMeansNoOffer(t *testing.T) {
	tx := Transaction(model.RawTransaction{TransactionID: "1", ProductID: "p", OfferIdentifier: "dangling"})
	assert.Nil(t, tx.Offer)
}

func TestTransaction_IntroductoryOfferWithoutID(t *testing.T) {
	tx := Transaction(model.RawTransaction{TransactionID: "1", ProductID: "p", OfferType: intp(1)})
	require.NotNil(t, tx.Offer)
	assert.Equal(t, model.OfferIntroductory, tx.Offer.Type)
	assert.Empty(t, tx.Offer.ID)
}

func TestTransaction_Deterministic(t *testing.T) {
	raw := model.RawTransaction{TransactionID: "1", ProductID: "p", PurchaseDate: 5, RevocationDate: i64(9)}
	assert.Equal(t, Transaction(raw), Transaction(raw))
}

func TestEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want model.Environment
	}{
		{"", model.EnvironmentSandbox},
		{"Production", model.EnvironmentProduction},
		{"Sandbox", model.EnvironmentSandbox},
		{"Xcode", model.EnvironmentBuildTool},
		{"LocalTesting", model.EnvironmentBuildTool},
		{"Staging", model.EnvironmentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Environment(tt.in))
		})
	}
}

func TestUnknownVariantsMapToUnknown(t *testing.T) {
	assert.Equal(t, model.OwnershipUnknown, OwnershipType("BORROWED"))
	assert.Equal(t, model.ProductUnknown, ProductType("Bundle"))
	assert.Equal(t, model.OfferUnknown, OfferType(3))
	assert.Equal(t, model.ReasonUnknown, ExpirationReason(5))
	assert.Equal(t, model.OwnershipPurchased, OwnershipType(""))
}

func TestRenewalInfo(t *testing.T) {
	raw := model.RawRenewalInfo{
		ProductID:              "com.app.sub",
		AutoRenewStatus:        0,
		ExpirationIntent:       intp(2),
		GracePeriodExpiresDate: i64(5000),
		IsInBillingRetryPeriod: true,
	}

	info := RenewalInfo(raw)

	assert.Equal(t, "com.app.sub", info.ProductID)
	assert.False(t, info.WillAutoRenew)
	require.NotNil(t, info.ExpirationReason)
	assert.Equal(t, model.ReasonBillingError, *info.ExpirationReason)
	require.NotNil(t, info.GracePeriodExpirationDate)
	assert.True(t, info.IsInBillingRetryPeriod)
	assert.Nil(t, info.Offer)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(model.RawTransaction{TransactionID: "1", ProductID: "p"}))

	err := Validate(model.RawTransaction{ProductID: "p"})
	assert.True(t, storeerr.IsCode(err, storeerr.CodeInvalidPurchase))

	err = Validate(model.RawTransaction{TransactionID: "1", ProductID: "  "})
	assert.True(t, storeerr.IsCode(err, storeerr.CodeInvalidPurchase))
}

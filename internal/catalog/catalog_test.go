package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/storeerr"
)

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("testdata/catalog.cue")
	require.NoError(t, err)
	return c
}

func TestLoad_Products(t *testing.T) {
	c := loadTestCatalog(t)

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []string{"com.app.coins", "com.app.pro", "com.app.sub.monthly", "com.app.sub.yearly"}, c.IDs())

	pro, ok := c.Product("com.app.pro")
	require.True(t, ok)
	assert.Equal(t, "Pro Unlock", pro.DisplayName)
	assert.Equal(t, model.ProductNonConsumable, pro.Type)
	assert.Equal(t, "4.99", pro.Price.String())
	assert.Equal(t, "USD 4.99", pro.PriceFormatted)
	assert.Equal(t, "", pro.GroupID())

	coins, _ := c.Product("com.app.coins")
	assert.Equal(t, "", coins.Description, "description defaults to empty")
	assert.Equal(t, "EUR", coins.CurrencyCode)
}

func TestLoad_QuantizesToMinorUnit(t *testing.T) {
	c := loadTestCatalog(t)

	monthly, _ := c.Product("com.app.sub.monthly")
	assert.Equal(t, "2.50", monthly.Price.String())

	yearly, _ := c.Product("com.app.sub.yearly")
	assert.Equal(t, "1200", yearly.Price.String())
	assert.Equal(t, "JPY 1200", yearly.PriceFormatted)
}

func TestLoad_SubscriptionInfo(t *testing.T) {
	c := loadTestCatalog(t)

	monthly, _ := c.Product("com.app.sub.monthly")
	require.NotNil(t, monthly.SubscriptionInfo)
	info := monthly.SubscriptionInfo
	assert.Equal(t, "premium", info.GroupID)
	assert.Equal(t, "P1M", info.Period)

	require.NotNil(t, info.IntroductoryOffer)
	assert.Equal(t, model.OfferIntroductory, info.IntroductoryOffer.Type)
	assert.Equal(t, "0.00", info.IntroductoryOffer.Price.String())
	assert.Equal(t, 1, info.IntroductoryOffer.PeriodCount, "period count defaults to 1")
	assert.Equal(t, "freeTrial", info.IntroductoryOffer.PaymentMode)

	require.Len(t, info.PromotionalOffers, 1)
	promo := info.PromotionalOffers[0]
	assert.Equal(t, "winback", promo.ID)
	assert.Equal(t, 3, promo.PeriodCount)
	assert.Equal(t, "1.25", promo.Price.String())
}

func TestFetch(t *testing.T) {
	c := loadTestCatalog(t)

	got, err := c.Fetch(context.Background(), []string{"com.app.sub.yearly", "com.app.pro"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "com.app.sub.yearly", got[0].ID, "request order is kept")
	assert.Equal(t, "com.app.pro", got[1].ID)
}

func TestFetch_UnknownID(t *testing.T) {
	c := loadTestCatalog(t)

	_, err := c.Fetch(context.Background(), []string{"com.app.pro", "com.app.nope"})
	require.Error(t, err)
	assert.True(t, storeerr.IsCode(err, storeerr.CodeInvalidProductID))
	assert.Contains(t, err.Error(), "com.app.nope")
}

func TestFetch_Cancelled(t *testing.T) {
	c := loadTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, []string{"com.app.pro"})
	assert.True(t, storeerr.IsUserCancelled(err))
}

func TestLoad_RejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"unknown field", "testdata/unknown_field.cue"},
		{"unknown currency", "testdata/bad_currency.cue"},
		{"missing file", "testdata/missing.cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.file)
			assert.Error(t, err)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name: "syntax",
			src:  `products: {`,
		},
		{
			name: "bad price",
			src: `products: "p": {
	displayName: "P", price: "4,99", currencyCode: "USD", type: "consumable"
}`,
		},
		{
			name: "too precise for currency",
			src: `products: "p": {
	displayName: "P", price: "4.999", currencyCode: "USD", type: "consumable"
}`,
			wantMsg: "decimal places",
		},
		{
			name: "subscription without block",
			src: `products: "p": {
	displayName: "P", price: "4.99", currencyCode: "USD", type: "autoRenewableSubscription"
}`,
			wantMsg: "subscription block",
		},
		{
			name: "consumable with block",
			src: `products: "p": {
	displayName: "P", price: "4.99", currencyCode: "USD", type: "consumable"
	subscription: {group: "g", period: "P1M"}
}`,
			wantMsg: "cannot carry",
		},
		{
			name: "bad period",
			src: `products: "p": {
	displayName: "P", price: "4.99", currencyCode: "USD", type: "autoRenewableSubscription"
	subscription: {group: "g", period: "monthly"}
}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "inline.cue")
			require.Error(t, err)
			var le *LoadError
			assert.ErrorAs(t, err, &le)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestProducts_Sorted(t *testing.T) {
	c := loadTestCatalog(t)
	products := c.Products()
	require.Len(t, products, 4)
	assert.Equal(t, "com.app.coins", products[0].ID)
}

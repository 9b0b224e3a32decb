package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/entitle/internal/model"
)

func TestRenewalBook_PutReplaces(t *testing.T) {
	b := NewRenewalBook()
	b.Put(model.RenewalInfo{ProductID: "p", WillAutoRenew: true})
	b.Put(model.RenewalInfo{ProductID: "p", WillAutoRenew: false, AutoRenewProductID: "q"})

	info, ok := b.RenewalInfo("p")
	assert.True(t, ok)
	assert.False(t, info.WillAutoRenew)
	assert.Equal(t, "q", info.AutoRenewProductID)
	assert.Equal(t, 1, b.Len())

	b.Delete("p")
	_, ok = b.RenewalInfo("p")
	assert.False(t, ok)
}

func TestRenewalBook_ReplaceDropsStaleFacts(t *testing.T) {
	b := NewRenewalBook()
	b.Put(model.RenewalInfo{ProductID: "old", IsInBillingRetryPeriod: true})
	b.Put(model.RenewalInfo{ProductID: "p", WillAutoRenew: false})

	b.Replace([]model.RenewalInfo{{ProductID: "p", WillAutoRenew: true}})

	_, ok := b.RenewalInfo("old")
	assert.False(t, ok)
	info, ok := b.RenewalInfo("p")
	assert.True(t, ok)
	assert.True(t, info.WillAutoRenew)
	assert.Equal(t, 1, b.Len())

	b.Replace(nil)
	assert.Zero(t, b.Len())
}

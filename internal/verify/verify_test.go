package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/storeerr"
)

func TestCheck_VerifiedPassesPayloadThrough(t *testing.T) {
	payload := model.RawTransaction{TransactionID: "1", ProductID: "com.app.pro", PurchaseDate: 1000}

	got, err := Check(model.Verified(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCheck_UnverifiedReturnsTypedError(t *testing.T) {
	payload := model.RawTransaction{TransactionID: "7", ProductID: "com.app.pro"}

	got, err := Check(model.Unverified(payload, "invalid signature"))
	require.Error(t, err)
	assert.True(t, storeerr.IsVerificationFailed(err))
	assert.Contains(t, err.Error(), "invalid signature")
	assert.Contains(t, err.Error(), "7")
	assert.Equal(t, model.RawTransaction{}, got, "nothing from an unverified element leaks out")
}

func TestCheck_UnverifiedWithoutCause(t *testing.T) {
	_, err := Check(model.VerificationResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<no id>")
}

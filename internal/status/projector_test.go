package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/reconcile"
	"github.com/roach88/entitle/internal/testutil"
)

func setup(nowMilli int64) (*reconcile.Reconciler, *RenewalBook, *testutil.ManualClock, *Projector) {
	r := reconcile.New()
	book := NewRenewalBook()
	clock := testutil.NewManualClock(nowMilli)
	return r, book, clock, NewProjector(r, WithRenewals(book), WithClock(clock))
}

func TestStatusFor_NeverSubscribed(t *testing.T) {
	_, _, _, p := setup(1500)
	assert.Nil(t, p.StatusFor("com.app.sub", ""))
}

func TestStatusFor_RenewalScenario(t *testing.T) {
	r, _, clock, p := setup(1500)

	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000)))
	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateSubscribed, st.State)
	assert.Equal(t, int64(2000), st.Transaction.ExpirationDate.UnixMilli())

	clock.Set(2500)
	r.Ingest(testutil.Tx("2", "com.app.sub", 2000, testutil.Expires(3000)))
	st = p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateSubscribed, st.State)
	assert.Equal(t, "2", st.Transaction.ID)
	assert.Equal(t, int64(3000), st.Transaction.ExpirationDate.UnixMilli())
}

func TestStatusFor_ExpiredAtBoundary(t *testing.T) {
	r, _, _, p := setup(2000)
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000)))

	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateExpired, st.State)
}

func TestStatusFor_RevokedBeatsExpired(t *testing.T) {
	r, _, _, p := setup(5000)
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000), testutil.Revoked(1500)))

	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateRevoked, st.State)
	assert.Equal(t, "1", st.Transaction.ID, "revoked transaction is still reported")
}

func TestStatusFor_GraceAndBillingRetry(t *testing.T) {
	r, book, _, p := setup(2500)
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000)))

	grace := testutil.Millis(4000)
	book.Put(model.RenewalInfo{ProductID: "com.app.sub", WillAutoRenew: true, GracePeriodExpirationDate: &grace})

	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateInGracePeriod, st.State)
	require.NotNil(t, st.RenewalInfo)
	assert.True(t, st.RenewalInfo.WillAutoRenew)

	book.Put(model.RenewalInfo{ProductID: "com.app.sub", GracePeriodExpirationDate: &grace, IsInBillingRetryPeriod: true})
	st = p.StatusFor("com.app.sub", "")
	assert.Equal(t, model.StateInBillingRetry, st.State, "billing retry outranks grace")
}

func TestStatusFor_ElapsedGraceIsExpired(t *testing.T) {
	r, book, _, p := setup(5000)
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000)))

	grace := testutil.Millis(4000)
	reason := model.ReasonBillingError
	book.Put(model.RenewalInfo{ProductID: "com.app.sub", GracePeriodExpirationDate: &grace, ExpirationReason: &reason})

	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateExpired, st.State)
	assert.Equal(t, model.ReasonBillingError, *st.RenewalInfo.ExpirationReason)
}

func TestStatusFor_GroupFilter(t *testing.T) {
	r, _, _, p := setup(1500)
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000), testutil.Group("g1")))

	assert.NotNil(t, p.StatusFor("com.app.sub", "g1"))
	assert.Nil(t, p.StatusFor("com.app.sub", "g2"))

	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, "g1", st.GroupID)
}

func TestStatusesForGroup_Upgrade(t *testing.T) {
	r, _, _, p := setup(1500)
	r.Ingest(testutil.Tx("1", "com.app.basic", 1000, testutil.Expires(5000), testutil.Group("g1"), testutil.Upgraded()))
	r.Ingest(testutil.Tx("2", "com.app.premium", 1200, testutil.Expires(5000), testutil.Group("g1")))
	r.Ingest(testutil.Tx("3", "com.app.other", 1200, testutil.Expires(5000), testutil.Group("g2")))

	statuses := p.StatusesForGroup("g1")
	require.Len(t, statuses, 2)
	assert.Equal(t, "com.app.basic", statuses[0].ProductID)
	assert.Equal(t, model.StateExpired, statuses[0].State, "upgraded plan no longer grants access")
	assert.Equal(t, "com.app.premium", statuses[1].ProductID)
	assert.Equal(t, model.StateSubscribed, statuses[1].State)

	plan, ok := p.CurrentPlan("g1")
	require.True(t, ok)
	assert.Equal(t, "2", plan.ID)
}

func TestCurrentPlan_NoneActive(t *testing.T) {
	r, _, _, p := setup(9000)
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000), testutil.Group("g1")))

	_, ok := p.CurrentPlan("g1")
	assert.False(t, ok)
	_, ok = p.CurrentPlan("missing")
	assert.False(t, ok)
}

func TestStatusesForGroup_UsesProductCache(t *testing.T) {
	r, _, _, p := setup(1500)
	r.ReplaceProducts([]model.Product{{ID: "com.app.sub", SubscriptionInfo: &model.SubscriptionInfo{GroupID: "g7"}}})
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000)))

	statuses := p.StatusesForGroup("g7")
	require.Len(t, statuses, 1)
	assert.Equal(t, "g7", statuses[0].GroupID)
}

func TestStatusFor_NonSubscriptionIsSubscribed(t *testing.T) {
	r, _, _, p := setup(1500)
	r.Ingest(testutil.Tx("1", "com.app.pro", 1000))

	st := p.StatusFor("com.app.pro", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateSubscribed, st.State)
}

func TestClassify_Precedence(t *testing.T) {
	now := testutil.Millis(3000)
	future := testutil.Millis(9000)

	tests := []struct {
		name string
		tx   model.Transaction
		info *model.RenewalInfo
		want model.SubscriptionState
	}{
		{"active", testutil.Tx("1", "p", 1000, testutil.Expires(5000)), nil, model.StateSubscribed},
		{"expired", testutil.Tx("1", "p", 1000, testutil.Expires(2000)), nil, model.StateExpired},
		{"revoked and expired", testutil.Tx("1", "p", 1000, testutil.Expires(2000), testutil.Revoked(1500)), nil, model.StateRevoked},
		{"revoked with retry", testutil.Tx("1", "p", 1000, testutil.Revoked(1500)), &model.RenewalInfo{IsInBillingRetryPeriod: true}, model.StateRevoked},
		{"retry", testutil.Tx("1", "p", 1000, testutil.Expires(2000)), &model.RenewalInfo{IsInBillingRetryPeriod: true}, model.StateInBillingRetry},
		{"grace", testutil.Tx("1", "p", 1000, testutil.Expires(2000)), &model.RenewalInfo{GracePeriodExpirationDate: &future}, model.StateInGracePeriod},
		{"upgraded", testutil.Tx("1", "p", 1000, testutil.Expires(5000), testutil.Upgraded()), nil, model.StateExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.tx, tt.info, now))
		})
	}
}

func TestProjector_DefaultsToWallClock(t *testing.T) {
	r := reconcile.New()
	p := NewProjector(r)
	far := time.Now().Add(24 * time.Hour).UnixMilli()
	r.Ingest(testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(far)))

	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, model.StateSubscribed, st.State)
	assert.Nil(t, st.RenewalInfo)
}

// viewHistory serves fixed product views and counts reads.
type viewHistory struct {
	views map[string]model.ProductHistory
	reads int
}

func (h *viewHistory) ProductView(productID string) model.ProductHistory {
	h.reads++
	return h.views[productID]
}

func (h *viewHistory) GroupTransactions(string) []model.Transaction { return nil }

func TestStatusFor_ReadsOneProductView(t *testing.T) {
	h := &viewHistory{views: map[string]model.ProductHistory{
		"com.app.sub": {
			ProductID: "com.app.sub",
			GroupID:   "premium",
			Transactions: []model.Transaction{
				testutil.Tx("2", "com.app.sub", 2000, testutil.Expires(3000)),
				testutil.Tx("1", "com.app.sub", 1000, testutil.Expires(2000), testutil.Group("legacy")),
			},
		},
	}}
	p := NewProjector(h, WithClock(testutil.NewManualClock(2500)))

	st := p.StatusFor("com.app.sub", "")
	require.NotNil(t, st)
	assert.Equal(t, "premium", st.GroupID)
	assert.Equal(t, "2", st.Transaction.ID)
	assert.Equal(t, 1, h.reads)

	st = p.StatusFor("com.app.sub", "legacy")
	require.NotNil(t, st)
	assert.Equal(t, "1", st.Transaction.ID)
	assert.Equal(t, model.StateExpired, st.State)
	assert.Equal(t, 2, h.reads)

	assert.Nil(t, p.StatusFor("com.app.sub", "other"))
}

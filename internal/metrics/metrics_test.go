package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveIngest(SourceUpdate, 3)
	m.ObserveIngest(SourceUpdate, 4)
	m.ObserveRejected(SourceUpdate, "verificationFailed")
	m.ObserveAck(AckClaimed)
	m.ObserveAck(AckDuplicate)
	m.ObserveDropped()
	m.SetSubscribers(2)
	m.SetListenerRunning(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Ingested.WithLabelValues(SourceUpdate)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Entitlements))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues(SourceUpdate, "verificationFailed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Acks.WithLabelValues(AckDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Subscribers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenerAlive))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngest(SourceRestore, 1)
		m.ObserveRejected(SourceRestore, "x")
		m.ObserveAck(AckFailed)
		m.ObserveDropped()
		m.SetSubscribers(1)
		m.SetEntitlements(1)
		m.SetListenerRunning(false)
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

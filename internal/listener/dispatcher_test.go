package listener

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entitle/internal/metrics"
	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/testutil"
)

type collector struct {
	mu  sync.Mutex
	ids []string
}

func (c *collector) handle(tx model.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, tx.ID)
}

func (c *collector) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func TestDispatcher_FanOut(t *testing.T) {
	d := NewDispatcher()
	a, b := &collector{}, &collector{}
	subA := d.Subscribe(a.handle)
	subB := d.Subscribe(b.handle)
	assert.NotEqual(t, subA.ID(), subB.ID())
	assert.Equal(t, 2, d.Len())

	d.Publish(testutil.Tx("1", "p", 1000))
	d.Publish(testutil.Tx("2", "p", 1000))

	require.Eventually(t, func() bool { return len(a.got()) == 2 && len(b.got()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"1", "2"}, a.got())

	subA.Unsubscribe()
	subA.Unsubscribe()
	assert.Equal(t, 1, d.Len())

	d.Publish(testutil.Tx("3", "p", 1000))
	require.Eventually(t, func() bool { return len(b.got()) == 3 }, time.Second, time.Millisecond)
	assert.Len(t, a.got(), 2, "unsubscribed handler receives nothing new")

	d.Close()
	assert.Equal(t, 0, d.Len())
}

func TestDispatcher_DropsWhenSubscriberIsSlow(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(WithBuffer(1), WithDispatcherMetrics(m))

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	c := &collector{}
	sub := d.Subscribe(func(tx model.Transaction) {
		if tx.ID == "1" {
			started <- struct{}{}
			<-release
		}
		c.handle(tx)
	})

	d.Publish(testutil.Tx("1", "p", 1000))
	<-started
	d.Publish(testutil.Tx("2", "p", 1000)) // queued
	d.Publish(testutil.Tx("3", "p", 1000)) // dropped

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Dropped))

	close(release)
	sub.Unsubscribe()
	assert.Equal(t, []string{"1", "2"}, c.got())
}

func TestDispatcher_PanickingHandlerIsIsolated(t *testing.T) {
	d := NewDispatcher()
	c := &collector{}
	sub := d.Subscribe(func(tx model.Transaction) {
		if tx.ID == "boom" {
			panic("handler bug")
		}
		c.handle(tx)
	})

	d.Publish(testutil.Tx("boom", "p", 1000))
	d.Publish(testutil.Tx("ok", "p", 1000))

	require.Eventually(t, func() bool { return len(c.got()) == 1 }, time.Second, time.Millisecond)
	sub.Unsubscribe()
	assert.Equal(t, []string{"ok"}, c.got())
}

func TestDispatcher_SubscriberGauge(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(WithDispatcherMetrics(m))

	s1 := d.Subscribe(func(model.Transaction) {})
	d.Subscribe(func(model.Transaction) {})
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Subscribers))

	s1.Unsubscribe()
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Subscribers))
	d.Close()
	assert.Equal(t, 0.0, promtest.ToFloat64(m.Subscribers))
}

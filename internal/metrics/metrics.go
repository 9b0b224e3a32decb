// Package metrics holds the Prometheus collectors of the engine.
//
// Collectors are registered on an injected registry rather than the global
// default, so every test and every process owns its own set. All methods are
// safe on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "entitle"

// Source labels for where a transaction entered the engine.
const (
	SourceUpdate   = "update"
	SourceRestore  = "restore"
	SourcePurchase = "purchase"
)

// Ack outcome labels.
const (
	AckClaimed   = "claimed"
	AckDuplicate = "duplicate"
	AckFailed    = "failed"
)

// Metrics is the engine's collector set.
type Metrics struct {
	Ingested      *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
	Acks          *prometheus.CounterVec
	Dropped       prometheus.Counter
	Entitlements  prometheus.Gauge
	Subscribers   prometheus.Gauge
	ListenerAlive prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Ingested counts transactions applied to the reconciler.
		Ingested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "transactions_ingested_total",
			Help:      "Transactions applied to the entitlement set.",
		}, []string{"source"}),

		// Rejected counts elements that never reached the reconciler.
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "elements_rejected_total",
			Help:      "Stream elements rejected before ingestion, by error code.",
		}, []string{"source", "code"}),

		Acks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "acknowledgements_total",
			Help:      "Transaction acknowledgement attempts by outcome.",
		}, []string{"outcome"}),

		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "deliveries_dropped_total",
			Help:      "Notifications dropped because a subscriber buffer was full.",
		}),

		Entitlements: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "entitlements",
			Help:      "Products currently purchased.",
		}),

		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "subscribers",
			Help:      "Registered transaction subscribers.",
		}),

		ListenerAlive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "running",
			Help:      "1 while the update listener loop is running.",
		}),
	}
}

// ObserveIngest records one ingested transaction and the resulting number of
// purchased products.
func (m *Metrics) ObserveIngest(source string, purchased int) {
	if m == nil {
		return
	}
	m.Ingested.WithLabelValues(source).Inc()
	m.Entitlements.Set(float64(purchased))
}

// ObserveRejected records an element dropped before ingestion.
func (m *Metrics) ObserveRejected(source, code string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(source, code).Inc()
}

// ObserveAck records an acknowledgement outcome.
func (m *Metrics) ObserveAck(outcome string) {
	if m == nil {
		return
	}
	m.Acks.WithLabelValues(outcome).Inc()
}

// ObserveDropped records a notification dropped for a slow subscriber.
func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

// SetSubscribers reports the current subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

// SetEntitlements reports the current purchased-product count.
func (m *Metrics) SetEntitlements(n int) {
	if m == nil {
		return
	}
	m.Entitlements.Set(float64(n))
}

// SetListenerRunning flips the listener liveness gauge.
func (m *Metrics) SetListenerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.ListenerAlive.Set(1)
		return
	}
	m.ListenerAlive.Set(0)
}

package listener

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/entitle/internal/metrics"
	"github.com/roach88/entitle/internal/model"
)

// DefaultBuffer is the per-subscriber queue size used when none is given.
const DefaultBuffer = 64

// Handler receives normalized transactions.
type Handler func(model.Transaction)

// Dispatcher fans normalized transactions out to registered subscribers.
//
// Publish never blocks: each subscriber has its own bounded queue drained
// by its own goroutine, and a notification for a subscriber whose queue is
// full is dropped. Delivery is at-least-once with respect to the stream and
// unordered across concurrent sources.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBuffer sets the per-subscriber queue size.
func WithBuffer(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.buffer = n
		}
	}
}

// WithDispatcherMetrics sets the metrics sink.
func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher with no subscribers.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		subs:   make(map[string]*Subscription),
		buffer: DefaultBuffer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id    string
	queue *txQueue
	owner *Dispatcher
	once  sync.Once
	done  chan struct{}
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// Unsubscribe removes the subscription. Transactions already queued are
// still delivered; Unsubscribe returns after the handler goroutine exits, so
// it must not be called from inside the handler. Calling it more than once is
// safe.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.owner.remove(s.id)
		s.queue.Close()
	})
	<-s.done
}

// Subscribe registers h and starts its delivery goroutine.
func (d *Dispatcher) Subscribe(h Handler) *Subscription {
	sub := &Subscription{
		id:    newID(),
		queue: newTxQueue(d.buffer),
		owner: d,
		done:  make(chan struct{}),
	}

	d.mu.Lock()
	d.subs[sub.id] = sub
	n := len(d.subs)
	d.mu.Unlock()

	d.metrics.SetSubscribers(n)
	go d.deliver(sub, h)
	return sub
}

func (d *Dispatcher) deliver(sub *Subscription, h Handler) {
	defer close(sub.done)
	for {
		if tx, ok := sub.queue.TryDequeue(); ok {
			d.invoke(sub.id, h, tx)
			continue
		}
		if _, open := <-sub.queue.Wait(); !open && sub.queue.Len() == 0 {
			return
		}
	}
}

// invoke isolates a panicking handler so it cannot take the dispatcher down.
func (d *Dispatcher) invoke(id string, h Handler, tx model.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("subscriber panicked",
				"subscription_id", id,
				"transaction_id", tx.ID,
				"panic", r,
			)
		}
	}()
	h(tx)
}

func (d *Dispatcher) remove(id string) {
	d.mu.Lock()
	delete(d.subs, id)
	n := len(d.subs)
	d.mu.Unlock()
	d.metrics.SetSubscribers(n)
}

// Publish offers tx to every subscriber without blocking.
func (d *Dispatcher) Publish(tx model.Transaction) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, sub := range d.subs {
		if !sub.queue.Enqueue(tx) {
			d.metrics.ObserveDropped()
			d.logger.Warn("subscriber queue full, dropping notification",
				"subscription_id", id,
				"transaction_id", tx.ID,
			)
		}
	}
}

// Len returns the number of subscribers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close unsubscribes everyone.
func (d *Dispatcher) Close() {
	d.mu.RLock()
	subs := make([]*Subscription, 0, len(d.subs))
	for _, s := range d.subs {
		subs = append(subs, s)
	}
	d.mu.RUnlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

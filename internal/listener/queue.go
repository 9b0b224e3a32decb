package listener

import (
	"sync"

	"github.com/roach88/entitle/internal/model"
)

// txQueue is a bounded FIFO of transactions waiting for one subscriber.
//
// Producers never block: Enqueue on a full queue fails and the caller drops
// the notification. The consumer waits on a signal channel so it can also
// watch for shutdown.
type txQueue struct {
	mu     sync.Mutex
	items  []model.Transaction
	limit  int
	closed bool
	signal chan struct{} // buffered, size 1
}

func newTxQueue(limit int) *txQueue {
	if limit <= 0 {
		limit = 1
	}
	return &txQueue{
		items:  make([]model.Transaction, 0, min(limit, 64)),
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends tx. Returns false if the queue is full or closed.
func (q *txQueue) Enqueue(tx model.Transaction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) >= q.limit {
		return false
	}
	q.items = append(q.items, tx)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *txQueue) TryDequeue() (model.Transaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return model.Transaction{}, false
	}
	tx := q.items[0]
	q.items[0] = model.Transaction{}
	q.items = q.items[1:]
	return tx, true
}

// Wait returns the channel signalled on enqueue. It is closed by Close.
func (q *txQueue) Wait() <-chan struct{} {
	return q.signal
}

// Close stops accepting items and wakes the consumer. Items already queued
// remain dequeuable.
func (q *txQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.signal)
	}
}

// Len returns the number of queued items.
func (q *txQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

package listener

import (
	"context"
	"sync"

	"github.com/roach88/entitle/internal/model"
)

// AckLedger records which transactions have been acknowledged.
//
// ClaimAck returns true exactly once per transaction id: the first caller
// wins the right to acknowledge, every later caller sees false. The SQLite
// store implements it durably; MemoryLedger is the in-process fallback.
type AckLedger interface {
	ClaimAck(ctx context.Context, transactionID string) (bool, error)
}

// Finisher marks a transaction as processed with the issuing authority.
// It has external side effects and must run at most once per transaction.
type Finisher interface {
	Finish(ctx context.Context, tx model.Transaction) error
}

// FinisherFunc adapts a function to Finisher.
type FinisherFunc func(ctx context.Context, tx model.Transaction) error

// Finish implements Finisher.
func (f FinisherFunc) Finish(ctx context.Context, tx model.Transaction) error {
	return f(ctx, tx)
}

// MemoryLedger is an AckLedger that forgets everything on restart.
type MemoryLedger struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{claimed: make(map[string]struct{})}
}

// ClaimAck implements AckLedger.
func (l *MemoryLedger) ClaimAck(_ context.Context, transactionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.claimed[transactionID]; ok {
		return false, nil
	}
	l.claimed[transactionID] = struct{}{}
	return true, nil
}

// Len returns the number of claimed ids.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claimed)
}

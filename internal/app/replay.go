package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/reconcile"
)

// JournalReader reads journaled transactions in append order.
type JournalReader interface {
	ReadJournal(ctx context.Context) ([]model.Transaction, error)
}

// ReplayReport compares the entitlement sets rebuilt from a journal in
// append order and in reverse order.
type ReplayReport struct {
	Deliveries   int
	Transactions int
	Purchased    []string
	Forward      string
	Reverse      string
}

// Consistent reports whether both orders produced the same state.
func (r ReplayReport) Consistent() bool {
	return r.Forward == r.Reverse
}

// Replay rebuilds the entitlement set from the journal twice, once per
// direction, and fingerprints both results.
func Replay(ctx context.Context, journal JournalReader) (ReplayReport, error) {
	txs, err := journal.ReadJournal(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	forward := reconcile.New()
	forward.BulkLoad(txs)

	reversed := slices.Clone(txs)
	slices.Reverse(reversed)
	backward := reconcile.New()
	backward.BulkLoad(reversed)

	fwd, err := forward.Fingerprint()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}
	rev, err := backward.Fingerprint()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	return ReplayReport{
		Deliveries:   len(txs),
		Transactions: forward.Len(),
		Purchased:    forward.PurchasedProductIDs(),
		Forward:      fwd,
		Reverse:      rev,
	}, nil
}

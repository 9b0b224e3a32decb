package reconcile

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/entitle/internal/model"
)

// Reconciler owns the EntitlementSet and the product cache.
//
// Thread-safety model:
//   - Ingest / BulkLoad / ReplaceProducts: serialized by the write lock
//   - all queries: take the read lock and return copies
type Reconciler struct {
	mu sync.RWMutex

	history   map[string]model.Transaction   // transaction id -> merged delivery
	byProduct map[string]map[string]struct{} // product id -> transaction ids
	lastKnown map[string]model.Transaction   // product id -> newest non-upgraded transaction
	products  map[string]model.Product       // catalog cache, replaced wholesale

	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for ingestion diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		history:   make(map[string]model.Transaction),
		byProduct: make(map[string]map[string]struct{}),
		lastKnown: make(map[string]model.Transaction),
		products:  make(map[string]model.Product),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ingest applies one normalized, verified transaction. It never fails.
func (r *Reconciler) Ingest(tx model.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingestLocked(tx)
}

// BulkLoad clears the EntitlementSet and ingests txs in input order. The
// product cache is kept. Calling it twice with the same input yields the
// same state as calling it once.
func (r *Reconciler) BulkLoad(txs []model.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = make(map[string]model.Transaction, len(txs))
	r.byProduct = make(map[string]map[string]struct{})
	r.lastKnown = make(map[string]model.Transaction)

	for _, tx := range txs {
		r.ingestLocked(tx)
	}

	r.logger.Debug("bulk load applied",
		"transactions", len(txs),
		"products", len(r.lastKnown),
	)
}

func (r *Reconciler) ingestLocked(tx model.Transaction) {
	prev, seen := r.history[tx.ID]
	if seen {
		tx = merge(prev, tx)
	}
	r.history[tx.ID] = tx

	ids, ok := r.byProduct[tx.ProductID]
	if !ok {
		ids = make(map[string]struct{})
		r.byProduct[tx.ProductID] = ids
	}
	ids[tx.ID] = struct{}{}

	if seen && prev.ProductID != tx.ProductID {
		delete(r.byProduct[prev.ProductID], prev.ID)
		r.recomputeLocked(prev.ProductID)
	}
	r.recomputeLocked(tx.ProductID)

	r.logger.Debug("transaction ingested",
		"transaction_id", tx.ID,
		"product_id", tx.ProductID,
		"revoked", tx.IsRevoked(),
		"upgraded", tx.IsUpgraded,
		"redelivery", seen,
	)
}

// recomputeLocked re-derives the last known transaction of one product from
// its history.
func (r *Reconciler) recomputeLocked(productID string) {
	var best *model.Transaction
	for id := range r.byProduct[productID] {
		tx := r.history[id]
		if tx.IsUpgraded {
			continue
		}
		if best == nil || model.Newer(tx, *best) {
			candidate := tx
			best = &candidate
		}
	}

	if best == nil {
		delete(r.lastKnown, productID)
		return
	}
	r.lastKnown[productID] = *best
}

// merge resolves two deliveries of the same transaction id without regard to
// which arrived first: revocation and upgrade are terminal, and any remaining
// difference resolves to the larger content digest.
func merge(a, b model.Transaction) model.Transaction {
	if a.IsRevoked() != b.IsRevoked() {
		if a.IsRevoked() {
			return a
		}
		return b
	}
	if a.IsUpgraded != b.IsUpgraded {
		if a.IsUpgraded {
			return a
		}
		return b
	}
	da, errA := a.Digest()
	db, errB := b.Digest()
	if errA != nil || errB != nil || da >= db {
		return a
	}
	return b
}

// IsPurchased reports whether productID has a governing, non-revoked
// transaction.
func (r *Reconciler) IsPurchased(productID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.lastKnown[productID]
	return ok && !tx.IsRevoked()
}

// Governing returns the transaction that currently governs productID.
// A revoked transaction never governs.
func (r *Reconciler) Governing(productID string) (model.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.lastKnown[productID]
	if !ok || tx.IsRevoked() {
		return model.Transaction{}, false
	}
	return tx, true
}

// LastKnown returns the newest non-upgraded transaction for productID, even
// when it is revoked. Status reporting uses it to explain lost access.
func (r *Reconciler) LastKnown(productID string) (model.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.lastKnown[productID]
	return tx, ok
}

// CurrentEntitlements returns every governing, non-revoked transaction.
// The order is unspecified; callers must not rely on it.
func (r *Reconciler) CurrentEntitlements() []model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Transaction, 0, len(r.lastKnown))
	for _, tx := range r.lastKnown {
		if !tx.IsRevoked() {
			out = append(out, tx)
		}
	}
	return out
}

// PurchasedProductIDs returns the purchased product ids in ascending order.
func (r *Reconciler) PurchasedProductIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.purchasedLocked()
}

func (r *Reconciler) purchasedLocked() []string {
	ids := make([]string, 0, len(r.lastKnown))
	for id, tx := range r.lastKnown {
		if !tx.IsRevoked() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// FindTransaction looks a transaction up by id across all known
// transactions, governing or not.
func (r *Reconciler) FindTransaction(id string) (model.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.history[id]
	return tx, ok
}

// Transactions returns the full history of productID, newest first.
func (r *Reconciler) Transactions(productID string) []model.Transaction {
	return r.ProductView(productID).Transactions
}

// GroupTransactions returns every transaction belonging to groupID, newest
// first. Membership comes from the transaction's own group id, falling back
// to the cached product's subscription group.
func (r *Reconciler) GroupTransactions(groupID string) []model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Transaction
	for _, tx := range r.history {
		if r.groupOfLocked(tx) == groupID {
			out = append(out, tx)
		}
	}
	sortNewestFirst(out)
	return out
}

// GroupOf returns the subscription group of productID, or "" when unknown.
func (r *Reconciler) GroupOf(productID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.productGroupLocked(productID)
}

// ProductView returns the history and group of productID under one read
// lock, so both describe the same EntitlementSet version.
func (r *Reconciler) ProductView(productID string) model.ProductHistory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txs := make([]model.Transaction, 0, len(r.byProduct[productID]))
	for id := range r.byProduct[productID] {
		txs = append(txs, r.history[id])
	}
	sortNewestFirst(txs)
	return model.ProductHistory{
		ProductID:    productID,
		GroupID:      r.productGroupLocked(productID),
		Transactions: txs,
	}
}

func (r *Reconciler) productGroupLocked(productID string) string {
	if p, ok := r.products[productID]; ok && p.GroupID() != "" {
		return p.GroupID()
	}
	var newest *model.Transaction
	for id := range r.byProduct[productID] {
		tx := r.history[id]
		if tx.SubscriptionGroupID == "" {
			continue
		}
		if newest == nil || model.Newer(tx, *newest) {
			newest = &tx
		}
	}
	if newest == nil {
		return ""
	}
	return newest.SubscriptionGroupID
}

func (r *Reconciler) groupOfLocked(tx model.Transaction) string {
	if tx.SubscriptionGroupID != "" {
		return tx.SubscriptionGroupID
	}
	if p, ok := r.products[tx.ProductID]; ok {
		return p.GroupID()
	}
	return ""
}

// Len returns the number of known transactions.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

// AllTransactions returns every known transaction, newest first.
func (r *Reconciler) AllTransactions() []model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Transaction, 0, len(r.history))
	for _, tx := range r.history {
		out = append(out, tx)
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(txs []model.Transaction) {
	slices.SortFunc(txs, func(a, b model.Transaction) int {
		switch {
		case model.Newer(a, b):
			return -1
		case model.Newer(b, a):
			return 1
		default:
			return 0
		}
	})
}

// ReplaceProducts swaps the product cache for the given catalog entries.
// There is no partial merge: entries absent from products are dropped.
func (r *Reconciler) ReplaceProducts(products []model.Product) {
	next := make(map[string]model.Product, len(products))
	for _, p := range products {
		next[p.ID] = p
	}

	r.mu.Lock()
	r.products = next
	r.mu.Unlock()
}

// Product returns a cached catalog entry.
func (r *Reconciler) Product(id string) (model.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	return p, ok
}

// Snapshot is a point-in-time copy of the EntitlementSet.
type Snapshot struct {
	Governing map[string]model.Transaction // product id -> governing transaction
	Purchased []string                     // ascending
	Known     int                          // transactions in history
}

// Snapshot copies the EntitlementSet under a single read lock.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gov := make(map[string]model.Transaction, len(r.lastKnown))
	for id, tx := range r.lastKnown {
		if !tx.IsRevoked() {
			gov[id] = tx
		}
	}
	return Snapshot{
		Governing: gov,
		Purchased: r.purchasedLocked(),
		Known:     len(r.history),
	}
}

// Fingerprint returns a digest of the EntitlementSet: the governing
// transaction per product and the purchased set. Equal states have equal
// fingerprints regardless of how they were reached.
func (r *Reconciler) Fingerprint() (string, error) {
	snap := r.Snapshot()

	governing := make(map[string]any, len(snap.Governing))
	for id, tx := range snap.Governing {
		governing[id] = tx.Canonical()
	}
	data, err := model.MarshalCanonical(map[string]any{
		"governing": governing,
		"purchased": snap.Purchased,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return model.HashWithDomain(model.DomainEntitlementSet, data), nil
}

package status

import (
	"sync"

	"github.com/roach88/entitle/internal/model"
)

// RenewalBook is the table of renewal-info facts, keyed by product id.
//
// The storefront reports renewal info separately from transactions, so the
// book is filled by whoever receives those reports and read by the Projector.
// A newer report for a product replaces the older one.
//
// Thread-safety: All methods are safe for concurrent use.
type RenewalBook struct {
	mu    sync.RWMutex
	infos map[string]model.RenewalInfo
}

// NewRenewalBook creates an empty book.
func NewRenewalBook() *RenewalBook {
	return &RenewalBook{infos: make(map[string]model.RenewalInfo)}
}

// Put records info for info.ProductID, replacing any previous entry.
func (b *RenewalBook) Put(info model.RenewalInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.infos[info.ProductID] = info
}

// Replace swaps the whole book for infos. A restore uses it so facts from an
// earlier session cannot outlive the EntitlementSet they described.
func (b *RenewalBook) Replace(infos []model.RenewalInfo) {
	next := make(map[string]model.RenewalInfo, len(infos))
	for _, info := range infos {
		next[info.ProductID] = info
	}

	b.mu.Lock()
	b.infos = next
	b.mu.Unlock()
}

// Delete forgets the renewal facts of productID.
func (b *RenewalBook) Delete(productID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.infos, productID)
}

// RenewalInfo implements RenewalSource.
func (b *RenewalBook) RenewalInfo(productID string) (model.RenewalInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, ok := b.infos[productID]
	return info, ok
}

// Len returns the number of products with renewal facts.
func (b *RenewalBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.infos)
}

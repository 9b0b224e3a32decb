// Package status projects subscription state from the reconciled history
// and renewal-info facts.
//
// Nothing here is cached. Every call walks the reconciler's current history,
// so a status always reflects the latest ingested transaction.
package status

import (
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/entitle/internal/model"
)

// History is the read side of the reconciler the projector needs.
type History interface {
	ProductView(productID string) model.ProductHistory
	GroupTransactions(groupID string) []model.Transaction
}

// RenewalSource looks up renewal facts for a product.
type RenewalSource interface {
	RenewalInfo(productID string) (model.RenewalInfo, bool)
}

// Clock supplies "now" for expiration and grace-window comparisons.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

type noRenewals struct{}

func (noRenewals) RenewalInfo(string) (model.RenewalInfo, bool) {
	return model.RenewalInfo{}, false
}

// Projector computes SubscriptionStatus values on demand.
type Projector struct {
	history  History
	renewals RenewalSource
	clock    Clock
	logger   *slog.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithRenewals sets the renewal-info source. Without one, no grace or
// billing-retry facts are ever present.
func WithRenewals(src RenewalSource) Option {
	return func(p *Projector) {
		if src != nil {
			p.renewals = src
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(p *Projector) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProjector creates a Projector reading from history.
func NewProjector(history History, opts ...Option) *Projector {
	p := &Projector{
		history:  history,
		renewals: noRenewals{},
		clock:    wallClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StatusFor returns the status of productID, or nil when the product has
// never had a transaction. When group is non-empty only transactions of that
// subscription group are considered.
//
// The most recent transaction for the product decides the state, upgraded
// and revoked ones included. An upgraded transaction no longer grants the
// plan, so it projects as expired unless a stronger fact applies.
func (p *Projector) StatusFor(productID, group string) *model.SubscriptionStatus {
	view := p.history.ProductView(productID)
	groupID := group
	if groupID == "" {
		groupID = view.GroupID
	}

	var latest *model.Transaction
	for _, tx := range view.Transactions {
		if group != "" && view.GroupOf(tx) != group {
			continue
		}
		candidate := tx
		latest = &candidate
		break // newest first
	}
	if latest == nil {
		return nil
	}

	st := &model.SubscriptionStatus{
		ProductID:   productID,
		GroupID:     groupID,
		Transaction: latest,
	}
	if info, ok := p.renewals.RenewalInfo(productID); ok {
		st.RenewalInfo = &info
	}
	st.State = Classify(*latest, st.RenewalInfo, p.clock.Now())

	p.logger.Debug("status projected",
		"product_id", productID,
		"transaction_id", latest.ID,
		"state", st.State,
	)
	return st
}

// StatusesForGroup returns one status per product that has ever had a
// transaction in groupID, ordered by product id.
func (p *Projector) StatusesForGroup(groupID string) []model.SubscriptionStatus {
	var products []string
	for _, tx := range p.history.GroupTransactions(groupID) {
		if !slices.Contains(products, tx.ProductID) {
			products = append(products, tx.ProductID)
		}
	}
	slices.Sort(products)

	out := make([]model.SubscriptionStatus, 0, len(products))
	for _, id := range products {
		if st := p.StatusFor(id, groupID); st != nil {
			out = append(out, *st)
		}
	}
	return out
}

// CurrentPlan returns the newest transaction of groupID still active at now.
// An upgrade replaces the previous plan here: the upgraded transaction is
// skipped and the upgrade target wins.
func (p *Projector) CurrentPlan(groupID string) (model.Transaction, bool) {
	now := p.clock.Now()
	for _, tx := range p.history.GroupTransactions(groupID) {
		if !tx.IsActiveAt(now) {
			continue
		}
		return tx, true
	}
	return model.Transaction{}, false
}

// Package app assembles the engine into one explicitly constructed service.
//
// A Service owns exactly one Reconciler. The listener, the HTTP surface and
// the CLI all receive the same *Service; nothing is reached through a
// package-level singleton.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/entitle/internal/listener"
	"github.com/roach88/entitle/internal/metrics"
	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/normalize"
	"github.com/roach88/entitle/internal/reconcile"
	"github.com/roach88/entitle/internal/source"
	"github.com/roach88/entitle/internal/status"
	"github.com/roach88/entitle/internal/storeerr"
	"github.com/roach88/entitle/internal/verify"
)

// Service is the engine facade.
type Service struct {
	reconciler *reconcile.Reconciler
	renewals   *status.RenewalBook
	projector  *status.Projector
	dispatcher *listener.Dispatcher
	pipeline   *listener.Pipeline

	catalog      Catalog
	purchaser    Purchaser
	refunder     Refunder
	entitlements EntitlementSource
	journal      listener.Journal

	listening atomic.Bool

	metrics *metrics.Metrics
	logger  *slog.Logger
}

type options struct {
	catalog      Catalog
	purchaser    Purchaser
	refunder     Refunder
	entitlements EntitlementSource
	journal      listener.Journal
	acks         listener.AckLedger
	finisher     listener.Finisher
	clock        status.Clock
	buffer       int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*options)

// WithCatalog sets the product catalog collaborator.
func WithCatalog(c Catalog) Option { return func(o *options) { o.catalog = c } }

// WithPurchaser sets the purchase collaborator.
func WithPurchaser(p Purchaser) Option { return func(o *options) { o.purchaser = p } }

// WithRefunder sets the refund collaborator.
func WithRefunder(r Refunder) Option { return func(o *options) { o.refunder = r } }

// WithEntitlementSource sets where Restore reads current entitlements from.
func WithEntitlementSource(s EntitlementSource) Option {
	return func(o *options) { o.entitlements = s }
}

// WithJournal records every ingested transaction.
func WithJournal(j listener.Journal) Option { return func(o *options) { o.journal = j } }

// WithAckLedger sets the acknowledgement ledger guarding the finisher.
func WithAckLedger(l listener.AckLedger) Option { return func(o *options) { o.acks = l } }

// WithFinisher sets the external acknowledgement call.
func WithFinisher(f listener.Finisher) Option { return func(o *options) { o.finisher = f } }

// WithClock overrides the wall clock used for status projection.
func WithClock(c status.Clock) Option { return func(o *options) { o.clock = c } }

// WithSubscriberBuffer sets the per-subscriber notification queue size.
func WithSubscriberBuffer(n int) Option { return func(o *options) { o.buffer = n } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// New builds a Service and its components.
func New(opts ...Option) *Service {
	o := options{logger: slog.Default(), buffer: listener.DefaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := reconcile.New(reconcile.WithLogger(o.logger))
	book := status.NewRenewalBook()
	dispatcher := listener.NewDispatcher(
		listener.WithBuffer(o.buffer),
		listener.WithDispatcherMetrics(o.metrics),
		listener.WithDispatcherLogger(o.logger),
	)

	pipelineOpts := []listener.PipelineOption{
		listener.WithRenewals(book),
		listener.WithDispatcher(dispatcher),
		listener.WithAckLedger(o.acks),
		listener.WithMetrics(o.metrics),
		listener.WithLogger(o.logger),
	}
	if o.finisher != nil {
		pipelineOpts = append(pipelineOpts, listener.WithFinisher(o.finisher))
	}
	if o.journal != nil {
		pipelineOpts = append(pipelineOpts, listener.WithJournal(o.journal))
	}

	return &Service{
		reconciler:   r,
		renewals:     book,
		projector:    status.NewProjector(r, status.WithRenewals(book), status.WithClock(o.clock), status.WithLogger(o.logger)),
		dispatcher:   dispatcher,
		pipeline:     listener.NewPipeline(r, pipelineOpts...),
		catalog:      o.catalog,
		purchaser:    o.purchaser,
		refunder:     o.refunder,
		entitlements: o.entitlements,
		journal:      o.journal,
		metrics:      o.metrics,
		logger:       o.logger,
	}
}

// Products fetches catalog entries and replaces the product cache with them.
func (s *Service) Products(ctx context.Context, ids []string) ([]model.Product, error) {
	if s.catalog == nil {
		return nil, storeerr.New(storeerr.CodeProductNotAvailable, "no catalog configured")
	}
	products, err := s.catalog.Fetch(ctx, ids)
	if err != nil {
		return nil, storeerr.Classify(err)
	}
	s.reconciler.ReplaceProducts(products)
	return products, nil
}

// Purchase buys productID and ingests the resulting transaction. Failures
// come back classified; callers usually stay silent on userCancelled.
func (s *Service) Purchase(ctx context.Context, productID, offerID string) (model.Transaction, error) {
	if s.purchaser == nil {
		return model.Transaction{}, storeerr.New(storeerr.CodePurchaseNotAllowed, "purchases are not enabled")
	}

	result, err := s.purchaser.InitiatePurchase(ctx, productID, offerID)
	if err != nil {
		cerr := storeerr.Classify(err)
		s.logger.Info("purchase failed",
			"product_id", productID,
			"code", cerr.Code,
			"error", err,
		)
		return model.Transaction{}, cerr
	}

	tx, err := s.pipeline.Process(ctx, source.Element{Result: result}, metrics.SourcePurchase)
	if err != nil {
		return model.Transaction{}, storeerr.Classify(err)
	}
	if tx.ProductID != productID {
		s.logger.Warn("purchase returned a different product",
			"requested", productID,
			"product_id", tx.ProductID,
			"transaction_id", tx.ID,
		)
	}
	return tx, nil
}

// Restore rebuilds the entitlement set from the current-entitlements
// stream. Elements that fail verification are skipped; the rest are bulk
// loaded, and the skipped count is then reported as a verificationFailed
// error so the caller learns the restore was partial. Renewal facts are
// replaced along with the transactions.
func (s *Service) Restore(ctx context.Context) ([]model.Transaction, error) {
	if s.entitlements == nil {
		return nil, storeerr.New(storeerr.CodeUnknown, "no entitlement source configured")
	}
	stream, err := s.entitlements.CurrentEntitlements(ctx)
	if err != nil {
		return nil, storeerr.Classify(err)
	}
	if c, ok := stream.(io.Closer); ok {
		defer c.Close()
	}

	var (
		txs      []model.Transaction
		renewals []model.RenewalInfo
		skipped  int
		firstErr error
	)
	for {
		elem, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, storeerr.Classify(err)
		}

		raw, err := verify.Check(elem.Result)
		if err == nil {
			err = normalize.Validate(raw)
		}
		if err != nil {
			skipped++
			if firstErr == nil {
				firstErr = err
			}
			s.metrics.ObserveRejected(metrics.SourceRestore, string(storeerr.CodeOf(err)))
			s.logger.Warn("restore skipped element",
				"transaction_id", elem.Result.Payload.TransactionID,
				"error", err,
			)
			continue
		}
		txs = append(txs, normalize.Transaction(raw))
		if elem.Renewal != nil {
			renewals = append(renewals, normalize.RenewalInfo(*elem.Renewal))
		}
	}

	s.journalAll(ctx, txs)
	s.reconciler.BulkLoad(txs)
	s.renewals.Replace(renewals)
	s.metrics.SetEntitlements(len(s.reconciler.PurchasedProductIDs()))

	s.logger.Info("restore complete",
		"loaded", len(txs),
		"skipped", skipped,
	)

	if skipped > 0 {
		return txs, storeerr.Wrap(storeerr.CodeVerificationFailed,
			fmt.Sprintf("%d of %d elements failed verification", skipped, skipped+len(txs)),
			firstErr)
	}
	return txs, nil
}

func (s *Service) journalAll(ctx context.Context, txs []model.Transaction) {
	if s.journal == nil {
		return
	}
	for _, tx := range txs {
		if err := s.journal.AppendJournal(ctx, tx); err != nil {
			s.logger.Warn("journal append failed", "transaction_id", tx.ID, "error", err)
		}
	}
}

// Refund asks the storefront to refund transactionID. The id must be known
// to the reconciler, governing or not.
func (s *Service) Refund(ctx context.Context, transactionID string) (RefundResult, error) {
	if _, ok := s.reconciler.FindTransaction(transactionID); !ok {
		return RefundUnknown, storeerr.New(storeerr.CodeInvalidPurchase, "unknown transaction "+transactionID)
	}
	if s.refunder == nil {
		return RefundUnknown, storeerr.New(storeerr.CodeUnknown, "refunds are not enabled")
	}

	result, err := s.refunder.BeginRefund(ctx, transactionID)
	if err != nil {
		return RefundUnknown, storeerr.Classify(err)
	}
	switch result {
	case RefundSuccess, RefundUserCancelled:
		return result, nil
	default:
		return RefundUnknown, nil
	}
}

// Deliver runs one update element through the ingest pipeline, exactly as
// the listener would, and returns the ingested transaction or the rejection.
func (s *Service) Deliver(ctx context.Context, elem source.Element) (model.Transaction, error) {
	return s.pipeline.Process(ctx, elem, metrics.SourceUpdate)
}

// Listen consumes an update stream until ctx is cancelled or the stream
// ends. Only one Listen may run per Service; a concurrent call returns
// listener.ErrAlreadyRunning.
func (s *Service) Listen(ctx context.Context, stream source.Stream) error {
	if !s.listening.CompareAndSwap(false, true) {
		return listener.ErrAlreadyRunning
	}
	defer s.listening.Store(false)
	return s.newListener(stream).Run(ctx)
}

func (s *Service) newListener(stream source.Stream) *listener.Listener {
	return listener.New(stream, s.pipeline,
		listener.WithListenerMetrics(s.metrics),
		listener.WithListenerLogger(s.logger),
	)
}

// Subscribe registers h for every ingested transaction.
func (s *Service) Subscribe(h listener.Handler) *listener.Subscription {
	return s.dispatcher.Subscribe(h)
}

// PutRenewalInfo records renewal facts reported outside the stream.
func (s *Service) PutRenewalInfo(info model.RenewalInfo) {
	s.renewals.Put(info)
}

// IsPurchased reports whether productID is currently entitled.
func (s *Service) IsPurchased(productID string) bool {
	return s.reconciler.IsPurchased(productID)
}

// CurrentEntitlements returns the governing, non-revoked transactions in no
// particular order.
func (s *Service) CurrentEntitlements() []model.Transaction {
	return s.reconciler.CurrentEntitlements()
}

// PurchasedProductIDs returns the purchased products in ascending order.
func (s *Service) PurchasedProductIDs() []string {
	return s.reconciler.PurchasedProductIDs()
}

// FindTransaction looks a transaction up by id.
func (s *Service) FindTransaction(id string) (model.Transaction, bool) {
	return s.reconciler.FindTransaction(id)
}

// Status projects the subscription status of productID, or nil.
func (s *Service) Status(productID, group string) *model.SubscriptionStatus {
	return s.projector.StatusFor(productID, group)
}

// GroupStatuses projects one status per product of groupID.
func (s *Service) GroupStatuses(groupID string) []model.SubscriptionStatus {
	return s.projector.StatusesForGroup(groupID)
}

// CurrentPlan returns the active plan of groupID.
func (s *Service) CurrentPlan(groupID string) (model.Transaction, bool) {
	return s.projector.CurrentPlan(groupID)
}

// Snapshot copies the entitlement set.
func (s *Service) Snapshot() reconcile.Snapshot {
	return s.reconciler.Snapshot()
}

// Fingerprint digests the entitlement set.
func (s *Service) Fingerprint() (string, error) {
	return s.reconciler.Fingerprint()
}

// Close stops subscriber delivery.
func (s *Service) Close() {
	s.dispatcher.Close()
}

package listener

import (
	"context"
	"log/slog"

	"github.com/roach88/entitle/internal/metrics"
	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/normalize"
	"github.com/roach88/entitle/internal/source"
	"github.com/roach88/entitle/internal/storeerr"
	"github.com/roach88/entitle/internal/verify"
)

// Sink is the write side of the reconciler.
type Sink interface {
	Ingest(tx model.Transaction)
	PurchasedProductIDs() []string
}

// RenewalSink stores renewal-info facts.
type RenewalSink interface {
	Put(info model.RenewalInfo)
}

// Journal durably records normalized transactions.
type Journal interface {
	AppendJournal(ctx context.Context, tx model.Transaction) error
}

// Pipeline runs one element through gate, normalizer, reconciler, fan-out
// and acknowledgement. The listener runs it per stream element; the
// purchase flow runs it for the transaction a purchase returns.
type Pipeline struct {
	sink       Sink
	renewals   RenewalSink
	dispatcher *Dispatcher
	acks       AckLedger
	finisher   Finisher
	journal    Journal
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRenewals stores renewal facts that arrive with elements.
func WithRenewals(r RenewalSink) PipelineOption {
	return func(p *Pipeline) { p.renewals = r }
}

// WithDispatcher sets the subscriber fan-out.
func WithDispatcher(d *Dispatcher) PipelineOption {
	return func(p *Pipeline) {
		if d != nil {
			p.dispatcher = d
		}
	}
}

// WithAckLedger replaces the in-memory acknowledgement ledger.
func WithAckLedger(l AckLedger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.acks = l
		}
	}
}

// WithFinisher sets the external acknowledgement call.
func WithFinisher(f Finisher) PipelineOption {
	return func(p *Pipeline) { p.finisher = f }
}

// WithJournal records every ingested transaction.
func WithJournal(j Journal) PipelineOption {
	return func(p *Pipeline) { p.journal = j }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a Pipeline feeding sink.
func NewPipeline(sink Sink, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sink:   sink,
		acks:   NewMemoryLedger(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dispatcher == nil {
		p.dispatcher = NewDispatcher(WithDispatcherMetrics(p.metrics), WithDispatcherLogger(p.logger))
	}
	return p
}

// Dispatcher returns the fan-out used by the pipeline.
func (p *Pipeline) Dispatcher() *Dispatcher { return p.dispatcher }

// Process verifies, normalizes and ingests one element, then notifies
// subscribers and acknowledges the transaction.
//
// A rejected element returns a *storeerr.Error and leaves the reconciler
// untouched. If ctx is done once verification finished, the element is
// abandoned before ingestion and ctx.Err() is returned.
func (p *Pipeline) Process(ctx context.Context, elem source.Element, origin string) (model.Transaction, error) {
	raw, err := verify.Check(elem.Result)
	if err == nil {
		err = normalize.Validate(raw)
	}
	if err != nil {
		p.metrics.ObserveRejected(origin, string(storeerr.CodeOf(err)))
		return model.Transaction{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Transaction{}, err
	}

	tx := normalize.Transaction(raw)
	p.Apply(ctx, tx, origin)

	if elem.Renewal != nil && p.renewals != nil {
		p.renewals.Put(normalize.RenewalInfo(*elem.Renewal))
	}

	p.dispatcher.Publish(tx)
	p.acknowledge(ctx, tx)
	return tx, nil
}

// Apply journals and ingests an already normalized transaction. Journal
// failures are logged; the in-memory state is rebuilt from the stream
// anyway, so they never block ingestion.
func (p *Pipeline) Apply(ctx context.Context, tx model.Transaction, origin string) {
	if p.journal != nil {
		if err := p.journal.AppendJournal(ctx, tx); err != nil {
			p.logger.Warn("journal append failed",
				"transaction_id", tx.ID,
				"error", err,
			)
		}
	}
	p.sink.Ingest(tx)
	p.metrics.ObserveIngest(origin, len(p.sink.PurchasedProductIDs()))
}

// acknowledge finishes tx with the issuing authority at most once.
func (p *Pipeline) acknowledge(ctx context.Context, tx model.Transaction) {
	if p.finisher == nil {
		return
	}

	claimed, err := p.acks.ClaimAck(ctx, tx.ID)
	if err != nil {
		p.metrics.ObserveAck(metrics.AckFailed)
		p.logger.Error("ack claim failed",
			"transaction_id", tx.ID,
			"error", err,
		)
		return
	}
	if !claimed {
		p.metrics.ObserveAck(metrics.AckDuplicate)
		p.logger.Debug("already acknowledged", "transaction_id", tx.ID)
		return
	}

	p.metrics.ObserveAck(metrics.AckClaimed)
	if err := p.finisher.Finish(ctx, tx); err != nil {
		// The claim stands; a retry could finish the transaction twice.
		p.logger.Error("finish failed",
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}

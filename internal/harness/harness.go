package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/entitle/internal/app"
	"github.com/roach88/entitle/internal/catalog"
	"github.com/roach88/entitle/internal/listener"
	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/normalize"
	"github.com/roach88/entitle/internal/source"
	"github.com/roach88/entitle/internal/store"
	"github.com/roach88/entitle/internal/storeerr"
	"github.com/roach88/entitle/internal/testutil"
)

// Harness executes one scenario against a fresh service.
type Harness struct {
	svc     *app.Service
	store   *store.Store
	clock   *testutil.ManualClock
	restore []source.Element
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal and a fresh service
// whose clock starts at scenario.Now. Elements pass through the same
// verification, normalization and ingest pipeline the listener uses.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewManualClock(scenario.Now),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	opts := []app.Option{
		app.WithClock(h.clock),
		app.WithJournal(st),
		app.WithAckLedger(st),
		app.WithFinisher(listener.FinisherFunc(func(context.Context, model.Transaction) error { return nil })),
		app.WithEntitlementSource(app.EntitlementSourceFunc(h.currentEntitlements)),
		app.WithLogger(h.logger),
	}
	var cat *catalog.Catalog
	if scenario.Catalog != "" {
		cat, err = catalog.Load(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		opts = append(opts, app.WithCatalog(cat))
	}

	h.svc = app.New(opts...)
	defer h.svc.Close()

	if cat != nil {
		if _, err := h.svc.Products(ctx, cat.IDs()); err != nil {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
	}

	snap := h.svc.Snapshot()
	for id, tx := range snap.Governing {
		result.Governing[id] = tx.ID
	}
	if snap.Purchased != nil {
		result.Purchased = snap.Purchased
	}

	actx := &AssertionContext{Ctx: ctx, Service: h.svc, Journal: st}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	ev := TraceEvent{Step: i, Kind: step.Kind()}

	switch ev.Kind {
	case StepDeliver:
		elem := step.Deliver.Element()
		ev.TransactionID = elem.Result.Payload.TransactionID
		ev.ProductID = elem.Result.Payload.ProductID
		if _, err := h.svc.Deliver(ctx, elem); err != nil {
			if storeerr.Classify(err).Code == storeerr.CodeUnknown {
				return err
			}
			result.Rejected++
			ev.Outcome = OutcomeRejected
		} else {
			ev.Outcome = OutcomeIngested
		}

	case StepRestore:
		h.restore = h.restore[:0]
		for _, m := range step.Restore {
			h.restore = append(h.restore, m.Element())
		}
		txs, err := h.svc.Restore(ctx)
		switch {
		case err == nil:
			ev.Outcome = OutcomeLoaded
		case storeerr.IsVerificationFailed(err):
			result.Rejected += len(step.Restore) - len(txs)
			ev.Outcome = OutcomePartial
		default:
			return err
		}

	case StepClock:
		h.clock.Set(*step.Clock)
		ev.Outcome = OutcomeApplied

	case StepRenewal:
		h.svc.PutRenewalInfo(normalize.RenewalInfo(*step.Renewal))
		ev.ProductID = step.Renewal.ProductID
		ev.Outcome = OutcomeApplied
	}

	ev.Purchased = h.svc.PurchasedProductIDs()
	result.addTrace(ev)
	return nil
}

// currentEntitlements serves the elements of the running restore step.
func (h *Harness) currentEntitlements(context.Context) (source.Stream, error) {
	return source.FromSlice(h.restore...), nil
}

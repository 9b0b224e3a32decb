package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/entitle/internal/app"
	"github.com/roach88/entitle/internal/catalog"
	"github.com/roach88/entitle/internal/metrics"
	"github.com/roach88/entitle/internal/store"
)

// EngineOptions are the flags shared by commands that build a service.
type EngineOptions struct {
	Database string
	Catalog  string
}

// engine is a service plus the resources it owns.
type engine struct {
	svc      *app.Service
	store    *store.Store
	registry *prometheus.Registry
	logger   *slog.Logger
}

// openEngine builds a service from flags and config. Flags win over config.
// With a database the service journals every ingested transaction and
// guards acknowledgements with the database ledger. With a catalog the
// product cache is filled before returning.
func openEngine(ctx context.Context, opts *RootOptions, eo EngineOptions, extra ...app.Option) (*engine, error) {
	logger := opts.logger()
	e := &engine{registry: prometheus.NewRegistry(), logger: logger}

	svcOpts := []app.Option{
		app.WithLogger(logger),
		app.WithMetrics(metrics.New(e.registry)),
		app.WithSubscriberBuffer(opts.Config.SubscriberBuffer),
	}

	if db := firstNonEmpty(eo.Database, opts.Config.Database); db != "" {
		st, err := store.Open(db)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		e.store = st
		svcOpts = append(svcOpts, app.WithJournal(st), app.WithAckLedger(st))
		logger.Debug("journal enabled", "path", db)
	}

	var cat *catalog.Catalog
	if path := firstNonEmpty(eo.Catalog, opts.Config.Catalog); path != "" {
		var err error
		cat, err = catalog.Load(path)
		if err != nil {
			e.close()
			return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		svcOpts = append(svcOpts, app.WithCatalog(cat))
	}

	e.svc = app.New(append(svcOpts, extra...)...)

	if cat != nil {
		if _, err := e.svc.Products(ctx, cat.IDs()); err != nil {
			e.close()
			return nil, WrapExitError(ExitCommandError, "failed to load products", err)
		}
	}
	return e, nil
}

func (e *engine) close() {
	if e.svc != nil {
		e.svc.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("error closing database", "error", err)
		}
	}
}

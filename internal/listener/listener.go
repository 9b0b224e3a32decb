package listener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/entitle/internal/metrics"
	"github.com/roach88/entitle/internal/source"
)

// ErrAlreadyRunning is returned by Run when another Run is in progress on
// the same Listener.
var ErrAlreadyRunning = errors.New("listener already running")

// Listener is the long-lived consumer of the update stream.
//
// There is one logical consumer per Listener: a second concurrent Run is
// refused rather than allowed to race for the same elements.
type Listener struct {
	stream   source.Stream
	pipeline *Pipeline
	origin   string
	running  atomic.Bool

	processed atomic.Int64
	rejected  atomic.Int64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithOrigin sets the source label used for metrics. Default "update".
func WithOrigin(origin string) Option {
	return func(l *Listener) { l.origin = origin }
}

// WithListenerMetrics sets the metrics sink.
func WithListenerMetrics(m *metrics.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithListenerLogger sets the logger.
func WithListenerLogger(lg *slog.Logger) Option {
	return func(l *Listener) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New creates a Listener that runs stream elements through pipeline.
func New(stream source.Stream, pipeline *Pipeline, opts ...Option) *Listener {
	l := &Listener{
		stream:   stream,
		pipeline: pipeline,
		origin:   metrics.SourceUpdate,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run consumes the stream until ctx is cancelled or the stream ends.
//
// A failing element is logged and skipped; it never stops the loop.
// Cancellation stops consumption between elements and leaves already
// ingested state in place. Run returns ctx.Err() on cancellation and nil
// when the stream ends.
func (l *Listener) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	session := newID()
	logger := l.logger.With("session_id", session)
	logger.Info("listener starting")
	l.metrics.SetListenerRunning(true)
	defer l.metrics.SetListenerRunning(false)

	for {
		elem, err := l.stream.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			logger.Info("listener stopping: stream ended",
				"processed", l.processed.Load(),
				"rejected", l.rejected.Load(),
			)
			return nil
		case ctx.Err() != nil:
			logger.Info("listener stopping: context cancelled")
			return ctx.Err()
		default:
			logger.Error("stream read failed", "error", err)
			return err
		}

		l.handle(ctx, logger, elem)
	}
}

func (l *Listener) handle(ctx context.Context, logger *slog.Logger, elem source.Element) {
	tx, err := l.pipeline.Process(ctx, elem, l.origin)
	if err != nil && ctx.Err() != nil {
		// Abandoned mid-element: leave it for redelivery.
		if serr := elem.Settle(false); serr != nil {
			logger.Warn("settle failed", "error", serr)
		}
		return
	}

	if err != nil {
		l.rejected.Add(1)
		logger.Warn("element rejected",
			"transaction_id", elem.Result.Payload.TransactionID,
			"product_id", elem.Result.Payload.ProductID,
			"error", err,
		)
	} else {
		l.processed.Add(1)
		logger.Debug("element ingested",
			"transaction_id", tx.ID,
			"product_id", tx.ProductID,
		)
	}

	if serr := elem.Settle(true); serr != nil {
		logger.Warn("settle failed", "error", serr)
	}
}

// Running reports whether Run is in progress.
func (l *Listener) Running() bool { return l.running.Load() }

// Stats returns how many elements were ingested and rejected so far.
func (l *Listener) Stats() (processed, rejected int64) {
	return l.processed.Load(), l.rejected.Load()
}

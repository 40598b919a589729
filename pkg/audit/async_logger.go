package audit

import (
	"context"
	"time"

	"github.com/taskgrid/taskgrid/pkg/async"
	"github.com/taskgrid/taskgrid/pkg/observability"
)

// AsyncLogger decouples audit writes from the request path by pushing
// events through a worker pool. Log never blocks on the underlying sink;
// events are dropped with a warning when the pool cannot accept them.
type AsyncLogger struct {
	sink   Logger
	pool   *async.WorkerPool
	logger *observability.Logger
}

// NewAsyncLogger wraps sink with a pool of workers writers.
func NewAsyncLogger(ctx context.Context, logger *observability.Logger, sink Logger, workers int) *AsyncLogger {
	if workers <= 0 {
		workers = 2
	}
	return &AsyncLogger{
		sink:   sink,
		pool:   async.NewWorkerPool(ctx, logger, workers, "audit writes", 10*time.Second),
		logger: logger,
	}
}

// Log enqueues the event for background delivery.
func (a *AsyncLogger) Log(ctx context.Context, event *AuditEvent) error {
	err := a.pool.Submit(func(taskCtx context.Context) error {
		return a.sink.Log(taskCtx, event)
	})
	if err != nil {
		a.logger.WithError(err).
			WithField("event_type", string(event.EventType)).
			Warn("Dropping audit event, writer pool unavailable")
	}
	return err
}

// Close drains pending events and closes the underlying sink.
func (a *AsyncLogger) Close() error {
	if err := a.pool.Shutdown(5 * time.Second); err != nil {
		a.logger.WithError(err).Warn("Audit writer pool did not drain cleanly")
	}
	return a.sink.Close()
}

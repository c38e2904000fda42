package worker

import (
	"context"
	"log/slog"
	"time"

	audit "unikyc/pkg/platform/audit"
)

// Source yields buffered events in batches.
type Source interface {
	DequeueBatch(n int) []audit.Event
}

// Worker periodically drains a Source into a Store. Events that fail to
// persist are logged and dropped; the security buffer is lossy by nature.
type Worker struct {
	store     audit.Store
	source    Source
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewWorker(store audit.Store, source Source, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{store: store, source: source, interval: interval, batchSize: 100, logger: logger}
}

// Run flushes until ctx is cancelled, then performs a final flush.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush drains everything currently buffered. Returns the number persisted.
func (w *Worker) Flush(ctx context.Context) int {
	persisted := 0
	for {
		batch := w.source.DequeueBatch(w.batchSize)
		if len(batch) == 0 {
			return persisted
		}
		for _, event := range batch {
			if err := w.store.Append(ctx, event); err != nil {
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "security audit persist failed",
						"action", event.Action,
						"error", err,
					)
				}
				continue
			}
			persisted++
		}
	}
}

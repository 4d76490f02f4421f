// Package worker drains transaction events from the broker and exports the
// matching ledger records to the configured report sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"planora/internal/events"
	"planora/internal/export"
	"planora/internal/store"
)

// ExportWorker buffers rows per event and flushes them to the sink either
// when the batch fills up or on the periodic flush tick.
type ExportWorker struct {
	store     store.TransactionStore
	sink      export.RowAppender
	batchSize int

	mu      sync.Mutex
	pending []export.Row
}

func New(st store.TransactionStore, sink export.RowAppender, batchSize int) *ExportWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &ExportWorker{
		store:     st,
		sink:      sink,
		batchSize: batchSize,
	}
}

// HandleEvent processes one transaction event. Deleted events are
// acknowledged but not exported; the sheet is an append-only journal.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *events.TransactionEvent) error {
	switch event.Type {
	case events.TypeTransactionCreated, events.TypeRolloverApplied:
		return w.enqueue(ctx, event)
	case events.TypeTransactionDeleted:
		slog.InfoContext(ctx, "Skipping deleted transaction",
			"transaction_id", event.TransactionID)
		return nil
	default:
		slog.WarnContext(ctx, "Unknown event type", "type", event.Type)
		return nil
	}
}

func (w *ExportWorker) enqueue(ctx context.Context, event *events.TransactionEvent) error {
	t, err := w.store.GetTransaction(ctx, event.OwnerID, event.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		// The record was deleted before we got to it. Nothing to export.
		slog.WarnContext(ctx, "Transaction vanished before export",
			"transaction_id", event.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", event.TransactionID, err)
	}

	w.mu.Lock()
	w.pending = append(w.pending, export.FromTransaction(t))
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if full {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered rows to the sink. On failure the rows are put
// back so the next flush retries them.
func (w *ExportWorker) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := w.sink.Append(ctx, batch); err != nil {
		w.mu.Lock()
		w.pending = append(batch, w.pending...)
		w.mu.Unlock()
		return fmt.Errorf("append batch of %d: %w", len(batch), err)
	}

	slog.InfoContext(ctx, "Exported batch", "rows", len(batch))
	return nil
}

// Pending reports the number of buffered rows.
func (w *ExportWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Run flushes on a fixed interval until the context is cancelled, then
// performs a final flush so buffered rows are not lost on shutdown.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := w.Flush(flushCtx); err != nil {
				slog.Error("Final flush failed", "error", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic flush failed", "error", err)
			}
		}
	}
}

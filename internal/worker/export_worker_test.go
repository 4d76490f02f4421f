package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"planora/internal/core"
	"planora/internal/events"
	"planora/internal/export"
	"planora/internal/store/memory"
)

type fakeSink struct {
	batches [][]export.Row
	fail    bool
}

func (f *fakeSink) Append(_ context.Context, rows []export.Row) error {
	if f.fail {
		return errors.New("sheet unavailable")
	}
	f.batches = append(f.batches, rows)
	return nil
}

func insertTransaction(t *testing.T, st *memory.Store, ownerID string) core.Transaction {
	t.Helper()
	saved, err := st.InsertTransaction(context.Background(), core.Transaction{
		OwnerID:    ownerID,
		Scope:      core.ScopeMonthly,
		Kind:       core.KindExpense,
		Amount:     core.Money{Cents: 2500},
		Category:   "food",
		OccurredAt: time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	return saved
}

func TestHandleEventBuffersUntilBatchFull(t *testing.T) {
	st := memory.New()
	sink := &fakeSink{}
	w := New(st, sink, 2)
	ctx := context.Background()

	first := insertTransaction(t, st, "owner-1")
	if err := w.HandleEvent(ctx, events.NewTransactionEvent(events.TypeTransactionCreated, "owner-1", first.ID)); err != nil {
		t.Fatalf("handle first: %v", err)
	}
	if len(sink.batches) != 0 {
		t.Fatalf("flushed before batch was full")
	}
	if w.Pending() != 1 {
		t.Fatalf("pending=%d, want 1", w.Pending())
	}

	second := insertTransaction(t, st, "owner-1")
	if err := w.HandleEvent(ctx, events.NewTransactionEvent(events.TypeTransactionCreated, "owner-1", second.ID)); err != nil {
		t.Fatalf("handle second: %v", err)
	}
	if len(sink.batches) != 1 {
		t.Fatalf("batches=%d, want 1", len(sink.batches))
	}
	if len(sink.batches[0]) != 2 {
		t.Fatalf("batch size=%d, want 2", len(sink.batches[0]))
	}
	if sink.batches[0][0].Category != "food" || sink.batches[0][0].Amount != 25 {
		t.Fatalf("unexpected row: %+v", sink.batches[0][0])
	}
}

func TestHandleEventSkipsDeletedAndVanished(t *testing.T) {
	st := memory.New()
	sink := &fakeSink{}
	w := New(st, sink, 1)
	ctx := context.Background()

	if err := w.HandleEvent(ctx, events.NewTransactionEvent(events.TypeTransactionDeleted, "owner-1", "gone")); err != nil {
		t.Fatalf("deleted event: %v", err)
	}

	// Created event whose record no longer exists must ack, not requeue.
	if err := w.HandleEvent(ctx, events.NewTransactionEvent(events.TypeTransactionCreated, "owner-1", "never-existed")); err != nil {
		t.Fatalf("vanished event: %v", err)
	}

	if w.Pending() != 0 || len(sink.batches) != 0 {
		t.Fatalf("pending=%d batches=%d, want 0/0", w.Pending(), len(sink.batches))
	}
}

func TestFlushRetainsRowsOnFailure(t *testing.T) {
	st := memory.New()
	sink := &fakeSink{fail: true}
	w := New(st, sink, 10)
	ctx := context.Background()

	saved := insertTransaction(t, st, "owner-1")
	if err := w.HandleEvent(ctx, events.NewTransactionEvent(events.TypeTransactionCreated, "owner-1", saved.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if err := w.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if w.Pending() != 1 {
		t.Fatalf("pending=%d after failed flush, want 1", w.Pending())
	}

	sink.fail = false
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if w.Pending() != 0 || len(sink.batches) != 1 {
		t.Fatalf("pending=%d batches=%d after retry", w.Pending(), len(sink.batches))
	}
}

func TestRolloverEventIsExported(t *testing.T) {
	st := memory.New()
	sink := &fakeSink{}
	w := New(st, sink, 1)
	ctx := context.Background()

	reset, err := st.InsertTransaction(ctx, core.Transaction{
		OwnerID:    "owner-1",
		Scope:      core.ScopeMonthly,
		Kind:       core.KindExpense,
		Amount:     core.Money{Cents: 150000},
		Category:   core.CategoryAutoReset,
		OccurredAt: time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("insert reset: %v", err)
	}

	if err := w.HandleEvent(ctx, events.NewRolloverEvent("owner-1", reset.ID, "2024-03")); err != nil {
		t.Fatalf("rollover event: %v", err)
	}
	if len(sink.batches) != 1 {
		t.Fatalf("batches=%d, want 1", len(sink.batches))
	}
	if sink.batches[0][0].Category != core.CategoryAutoReset {
		t.Fatalf("category=%q", sink.batches[0][0].Category)
	}
}

// Package services orchestrates domain operations across the store, the
// scope resolver, the aggregation core and the event stream.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"planora/internal/cache"
	"planora/internal/core"
	"planora/internal/events"
	"planora/internal/ledger"
	"planora/internal/log"
	"planora/internal/scope"
	"planora/internal/store"
)

const (
	summaryCacheSize = 512
	summaryCacheTTL  = 30 * time.Second
)

// LedgerService answers scoped summary queries and owns the salary-cycle
// rollover sequence. All cached views are invalidated on every write of the
// same owner, so an owner always reads their own writes.
type LedgerService struct {
	store       store.Store
	resolver    *scope.Resolver
	eventsCli   *events.Client
	logger      *log.Logger
	rolloverDay int
	cycleKey    ledger.CycleKeyFunc

	summaries *cache.LRUCache[ledger.Summary]
	balances  *cache.LRUCache[core.Money]
	cacheMgr  *cache.Manager

	// ownerMu serializes the rollover check-then-insert per owner within
	// this process. Across processes the sequence stays non-atomic.
	mu      sync.Mutex
	ownerMu map[string]*sync.Mutex
}

func NewLedgerService(st store.Store, resolver *scope.Resolver, eventsCli *events.Client, logger *log.Logger, rolloverDay int) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}
	if rolloverDay < 1 || rolloverDay > 28 {
		rolloverDay = ledger.DefaultRolloverDay
	}
	s := &LedgerService{
		store:       st,
		resolver:    resolver,
		eventsCli:   eventsCli,
		logger:      logger,
		rolloverDay: rolloverDay,
		cycleKey:    ledger.DefaultCycleKey,
		summaries:   cache.NewLRUCache[ledger.Summary](summaryCacheSize, summaryCacheTTL),
		balances:    cache.NewLRUCache[core.Money](summaryCacheSize, summaryCacheTTL),
		cacheMgr:    cache.NewManager(),
		ownerMu:     make(map[string]*sync.Mutex),
	}
	s.cacheMgr.Register(s.summaries)
	s.cacheMgr.Register(s.balances)
	s.cacheMgr.StartCleanup(time.Minute)
	return s
}

// AddTransaction records a transaction and publishes a created event.
// Event publishing is best-effort; the write stands even when the broker
// is down.
func (s *LedgerService) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.OccurredAt.IsZero() {
		t.OccurredAt = s.resolver.Now()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.invalidate(saved.OwnerID)
	s.publish(ctx, events.NewTransactionEvent(events.TypeTransactionCreated, saved.OwnerID, saved.ID))

	s.logger.InfoContext(ctx, "Transaction recorded",
		log.FieldOwnerID, saved.OwnerID,
		log.FieldScope, string(saved.Scope),
		log.FieldCategory, saved.Category,
		log.FieldAmount, saved.Amount.Cents)

	return saved, nil
}

// AddSalary records a monthly income in the salary category. Mirrors the
// one-tap salary entry of the finance view.
func (s *LedgerService) AddSalary(ctx context.Context, ownerID string, amount core.Money, note string) (core.Transaction, error) {
	return s.AddTransaction(ctx, core.Transaction{
		OwnerID:  ownerID,
		Scope:    core.ScopeMonthly,
		Kind:     core.KindIncome,
		Amount:   amount,
		Category: core.CategorySalary,
		Note:     note,
	})
}

// DeleteTransaction removes an owner's transaction and publishes a deleted
// event.
func (s *LedgerService) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteTransaction(ctx, ownerID, id); err != nil {
		return err
	}

	s.invalidate(ownerID)
	s.publish(ctx, events.NewTransactionEvent(events.TypeTransactionDeleted, ownerID, id))
	return nil
}

// Transactions lists the owner's records inside the resolved window,
// newest first.
func (s *LedgerService) Transactions(ctx context.Context, ownerID string, kind core.Scope, offset int, category string) ([]core.Transaction, error) {
	w, err := s.resolver.Resolve(kind, offset, s.resolver.Now())
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, ownerID, store.TransactionFilter{
		From:     &w.Start,
		To:       &w.End,
		Category: category,
	})
}

// Summarize aggregates the owner's records over the resolved window.
// Results are cached briefly per (owner, scope, offset, category).
func (s *LedgerService) Summarize(ctx context.Context, ownerID string, kind core.Scope, offset int, category string) (ledger.Summary, error) {
	key := fmt.Sprintf("%s|%s|%d|%s", ownerID, kind, offset, category)
	if cached, ok := s.summaries.Get(key); ok {
		return cached, nil
	}

	w, err := s.resolver.Resolve(kind, offset, s.resolver.Now())
	if err != nil {
		return ledger.Summary{}, err
	}

	records, err := s.store.ListTransactions(ctx, ownerID, store.TransactionFilter{
		From: &w.Start,
		To:   &w.End,
	})
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("load window records: %w", err)
	}

	summary := ledger.Aggregate(records, w, category)
	s.summaries.Set(key, summary)
	return summary, nil
}

// GlobalBalance returns the owner's all-time balance across every scope.
func (s *LedgerService) GlobalBalance(ctx context.Context, ownerID string) (core.Money, error) {
	key := ownerID + "|global"
	if cached, ok := s.balances.Get(key); ok {
		return cached, nil
	}

	records, err := s.store.ListTransactions(ctx, ownerID, store.TransactionFilter{})
	if err != nil {
		return core.Money{}, fmt.Errorf("load records: %w", err)
	}

	balance := ledger.GlobalBalance(records)
	s.balances.Set(key, balance)
	return balance, nil
}

// Categories lists the owner's distinct categories with the "all" sentinel
// first.
func (s *LedgerService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	records, err := s.store.ListTransactions(ctx, ownerID, store.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return ledger.Categories(records), nil
}

// EnsureRollover runs the salary-cycle check for the owner. On the
// rollover day the cycle marker is written the first time the check runs,
// whatever the balance; the balancing transaction is recorded only when
// the global balance is nonzero. Marking the cycle even on a zero balance
// means income recorded later the same day is not wiped by a late reset.
//
// The whole check-then-insert is serialized per owner inside this process,
// which is the at-most-once guarantee for a single-instance deployment.
// Two separate processes can still both roll over; that duplicate is
// accepted and visible as two auto-reset records.
func (s *LedgerService) EnsureRollover(ctx context.Context, ownerID string) (core.Transaction, bool, error) {
	mu := s.lockFor(ownerID)
	mu.Lock()
	defer mu.Unlock()

	ref := s.resolver.Now()
	if ref.Day() != s.rolloverDay {
		return core.Transaction{}, false, nil
	}
	key := s.cycleKey(ref)

	done, err := s.store.HasRolloverMarker(ctx, ownerID, key)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("check rollover marker: %w", err)
	}
	if done {
		return core.Transaction{}, false, nil
	}

	all, err := s.store.ListTransactions(ctx, ownerID, store.TransactionFilter{})
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("load records: %w", err)
	}

	var saved core.Transaction
	planned, due := ledger.PlanRollover(ownerID, all, s.rolloverDay, ref)
	if due {
		saved, err = s.store.InsertTransaction(ctx, planned)
		if err != nil {
			return core.Transaction{}, false, fmt.Errorf("save rollover transaction: %w", err)
		}
	}

	if err := s.store.InsertRolloverMarker(ctx, core.RolloverMarker{
		OwnerID:   ownerID,
		CycleKey:  key,
		CreatedAt: ref,
	}); err != nil {
		return core.Transaction{}, false, fmt.Errorf("save rollover marker: %w", err)
	}

	if !due {
		s.logger.InfoContext(ctx, "Rollover cycle marked with zero balance",
			log.FieldOwnerID, ownerID,
			log.FieldCycleKey, key)
		return core.Transaction{}, false, nil
	}

	s.invalidate(ownerID)
	s.publish(ctx, events.NewRolloverEvent(ownerID, saved.ID, key))

	s.logger.InfoContext(ctx, "Balance rollover applied",
		log.FieldOwnerID, ownerID,
		log.FieldCycleKey, key,
		log.FieldAmount, saved.Amount.Cents)

	return saved, true, nil
}

// Resolver exposes the reporting clock for handlers that need it.
func (s *LedgerService) Resolver() *scope.Resolver { return s.resolver }

func (s *LedgerService) lockFor(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.ownerMu[ownerID]
	if !ok {
		mu = &sync.Mutex{}
		s.ownerMu[ownerID] = mu
	}
	return mu
}

func (s *LedgerService) invalidate(ownerID string) {
	s.summaries.DeletePrefix(ownerID + "|")
	s.balances.DeletePrefix(ownerID + "|")
}

func (s *LedgerService) publish(ctx context.Context, event *events.TransactionEvent) {
	if s.eventsCli == nil {
		return
	}
	if err := s.eventsCli.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"type", event.Type,
			log.FieldOwnerID, event.OwnerID,
			log.FieldError, err)
	}
}

// Close stops cache cleanup and releases the event client. The store is
// owned by the backend factory and closed there.
func (s *LedgerService) Close() error {
	s.cacheMgr.Stop()
	if s.eventsCli != nil {
		return s.eventsCli.Close()
	}
	return nil
}

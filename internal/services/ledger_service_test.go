package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"planora/internal/core"
	"planora/internal/ledger"
	"planora/internal/scope"
	"planora/internal/store"
	"planora/internal/store/memory"
)

func jakartaClock(t *testing.T, instant time.Time) *scope.Resolver {
	t.Helper()
	r, err := scope.NewWithClock(scope.DefaultTimezone, func() time.Time { return instant })
	if err != nil {
		t.Fatalf("NewWithClock() error = %v", err)
	}
	return r
}

func newLedgerService(t *testing.T, instant time.Time) (*LedgerService, *memory.Store) {
	t.Helper()
	st := memory.New()
	return NewLedgerService(st, jakartaClock(t, instant), nil, nil, ledger.DefaultRolloverDay), st
}

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	return loc
}

func TestLedgerService_AddTransaction(t *testing.T) {
	loc := jakarta(t)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
	svc, _ := newLedgerService(t, now)
	ctx := context.Background()

	saved, err := svc.AddTransaction(ctx, core.Transaction{
		OwnerID:  "owner-1",
		Scope:    core.ScopeMonthly,
		Kind:     core.KindExpense,
		Amount:   core.Money{Cents: 2500},
		Category: "food",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if saved.ID == "" {
		t.Error("AddTransaction() should assign an id")
	}
	if !saved.OccurredAt.Equal(now) {
		t.Errorf("AddTransaction() OccurredAt = %v, want clock time %v", saved.OccurredAt, now)
	}
}

func TestLedgerService_AddTransaction_Invalid(t *testing.T) {
	loc := jakarta(t)
	svc, _ := newLedgerService(t, time.Date(2024, 3, 15, 10, 0, 0, 0, loc))

	_, err := svc.AddTransaction(context.Background(), core.Transaction{
		OwnerID:  "owner-1",
		Scope:    core.ScopeMonthly,
		Kind:     core.KindExpense,
		Amount:   core.Money{Cents: 0},
		Category: "food",
	})
	if err == nil {
		t.Error("AddTransaction() should reject zero amounts")
	}
}

func TestLedgerService_AddSalary(t *testing.T) {
	loc := jakarta(t)
	svc, _ := newLedgerService(t, time.Date(2024, 3, 1, 9, 0, 0, 0, loc))

	saved, err := svc.AddSalary(context.Background(), "owner-1", core.Money{Cents: 500000}, "march pay")
	if err != nil {
		t.Fatalf("AddSalary() error = %v", err)
	}
	if saved.Kind != core.KindIncome {
		t.Errorf("AddSalary() Kind = %v, want income", saved.Kind)
	}
	if saved.Scope != core.ScopeMonthly {
		t.Errorf("AddSalary() Scope = %v, want monthly", saved.Scope)
	}
	if saved.Category != core.CategorySalary {
		t.Errorf("AddSalary() Category = %v, want %v", saved.Category, core.CategorySalary)
	}
}

func TestLedgerService_Summarize(t *testing.T) {
	loc := jakarta(t)
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, loc)
	svc, _ := newLedgerService(t, now)
	ctx := context.Background()

	add := func(kind core.Kind, cents int64, category string, occurred time.Time) {
		t.Helper()
		_, err := svc.AddTransaction(ctx, core.Transaction{
			OwnerID:    "owner-1",
			Scope:      core.ScopeMonthly,
			Kind:       kind,
			Amount:     core.Money{Cents: cents},
			Category:   category,
			OccurredAt: occurred,
		})
		if err != nil {
			t.Fatalf("AddTransaction() error = %v", err)
		}
	}

	add(core.KindIncome, 100000, "salary", time.Date(2024, 3, 1, 9, 0, 0, 0, loc))
	add(core.KindExpense, 40000, "rent", time.Date(2024, 3, 2, 8, 0, 0, 0, loc))
	add(core.KindExpense, 10000, "food", time.Date(2024, 3, 15, 13, 0, 0, 0, loc))
	// Outside the current month, must not appear.
	add(core.KindExpense, 99999, "food", time.Date(2024, 2, 20, 10, 0, 0, 0, loc))

	summary, err := svc.Summarize(ctx, "owner-1", core.ScopeMonthly, 0, "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if summary.TotalIncome.Cents != 100000 {
		t.Errorf("TotalIncome = %d, want 100000", summary.TotalIncome.Cents)
	}
	if summary.TotalExpense.Cents != 50000 {
		t.Errorf("TotalExpense = %d, want 50000", summary.TotalExpense.Cents)
	}
	if summary.Balance.Cents != 50000 {
		t.Errorf("Balance = %d, want 50000", summary.Balance.Cents)
	}
	if len(summary.Series) != 31 {
		t.Fatalf("Series length = %d, want 31 for March", len(summary.Series))
	}
	if summary.Series[1].Expense.Cents != 40000 {
		t.Errorf("Series[1].Expense = %d, want 40000", summary.Series[1].Expense.Cents)
	}
	if summary.Series[14].Expense.Cents != 10000 {
		t.Errorf("Series[14].Expense = %d, want 10000", summary.Series[14].Expense.Cents)
	}
}

func TestLedgerService_Summarize_CacheInvalidatedOnWrite(t *testing.T) {
	loc := jakarta(t)
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, loc)
	svc, _ := newLedgerService(t, now)
	ctx := context.Background()

	if _, err := svc.AddTransaction(ctx, core.Transaction{
		OwnerID: "owner-1", Scope: core.ScopeMonthly, Kind: core.KindIncome,
		Amount: core.Money{Cents: 1000}, Category: "salary",
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	first, err := svc.Summarize(ctx, "owner-1", core.ScopeMonthly, 0, "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if first.Count != 1 {
		t.Fatalf("Count = %d, want 1", first.Count)
	}

	// A write must drop the cached summary so the next read sees it.
	if _, err := svc.AddTransaction(ctx, core.Transaction{
		OwnerID: "owner-1", Scope: core.ScopeMonthly, Kind: core.KindExpense,
		Amount: core.Money{Cents: 400}, Category: "food",
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	second, err := svc.Summarize(ctx, "owner-1", core.ScopeMonthly, 0, "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if second.Count != 2 {
		t.Errorf("Count after write = %d, want 2 (stale cache served)", second.Count)
	}
	if second.Balance.Cents != 600 {
		t.Errorf("Balance after write = %d, want 600", second.Balance.Cents)
	}
}

func TestLedgerService_GlobalBalance(t *testing.T) {
	loc := jakarta(t)
	svc, _ := newLedgerService(t, time.Date(2024, 3, 20, 12, 0, 0, 0, loc))
	ctx := context.Background()

	mustAdd := func(tr core.Transaction) {
		t.Helper()
		if _, err := svc.AddTransaction(ctx, tr); err != nil {
			t.Fatalf("AddTransaction() error = %v", err)
		}
	}

	// Records in different scopes and months all count.
	mustAdd(core.Transaction{OwnerID: "owner-1", Scope: core.ScopeMonthly, Kind: core.KindIncome,
		Amount: core.Money{Cents: 100000}, Category: "salary",
		OccurredAt: time.Date(2024, 1, 5, 9, 0, 0, 0, loc)})
	mustAdd(core.Transaction{OwnerID: "owner-1", Scope: core.ScopeDaily, Kind: core.KindExpense,
		Amount: core.Money{Cents: 30000}, Category: "food",
		OccurredAt: time.Date(2024, 3, 10, 13, 0, 0, 0, loc)})
	// Another owner's record is invisible.
	mustAdd(core.Transaction{OwnerID: "owner-2", Scope: core.ScopeMonthly, Kind: core.KindIncome,
		Amount: core.Money{Cents: 777}, Category: "salary",
		OccurredAt: time.Date(2024, 3, 10, 13, 0, 0, 0, loc)})

	balance, err := svc.GlobalBalance(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GlobalBalance() error = %v", err)
	}
	if balance.Cents != 70000 {
		t.Errorf("GlobalBalance = %d, want 70000", balance.Cents)
	}
}

func TestLedgerService_EnsureRollover(t *testing.T) {
	loc := jakarta(t)
	rolloverDay := time.Date(2024, 3, 28, 8, 0, 0, 0, loc)
	svc, _ := newLedgerService(t, rolloverDay)
	ctx := context.Background()

	if _, err := svc.AddTransaction(ctx, core.Transaction{
		OwnerID: "owner-1", Scope: core.ScopeMonthly, Kind: core.KindIncome,
		Amount:     core.Money{Cents: 150000},
		Category:   "salary",
		OccurredAt: time.Date(2024, 3, 1, 9, 0, 0, 0, loc),
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	reset, applied, err := svc.EnsureRollover(ctx, "owner-1")
	if err != nil {
		t.Fatalf("EnsureRollover() error = %v", err)
	}
	if !applied {
		t.Fatal("EnsureRollover() should apply on the rollover day with nonzero balance")
	}
	if reset.Kind != core.KindExpense {
		t.Errorf("reset Kind = %v, want expense for positive balance", reset.Kind)
	}
	if reset.Amount.Cents != 150000 {
		t.Errorf("reset Amount = %d, want 150000", reset.Amount.Cents)
	}
	if reset.Category != core.CategoryAutoReset {
		t.Errorf("reset Category = %v, want %v", reset.Category, core.CategoryAutoReset)
	}

	balance, err := svc.GlobalBalance(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GlobalBalance() error = %v", err)
	}
	if balance.Cents != 0 {
		t.Errorf("balance after rollover = %d, want 0", balance.Cents)
	}

	// Second call in the same cycle is a no-op.
	_, applied, err = svc.EnsureRollover(ctx, "owner-1")
	if err != nil {
		t.Fatalf("EnsureRollover() second call error = %v", err)
	}
	if applied {
		t.Error("EnsureRollover() must not apply twice in one cycle")
	}
}

func TestLedgerService_EnsureRollover_NotDue(t *testing.T) {
	loc := jakarta(t)
	svc, _ := newLedgerService(t, time.Date(2024, 3, 15, 8, 0, 0, 0, loc))
	ctx := context.Background()

	if _, err := svc.AddTransaction(ctx, core.Transaction{
		OwnerID: "owner-1", Scope: core.ScopeMonthly, Kind: core.KindIncome,
		Amount: core.Money{Cents: 150000}, Category: "salary",
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	_, applied, err := svc.EnsureRollover(ctx, "owner-1")
	if err != nil {
		t.Fatalf("EnsureRollover() error = %v", err)
	}
	if applied {
		t.Error("EnsureRollover() must not apply off the rollover day")
	}
}

func TestLedgerService_EnsureRollover_ZeroBalanceMarksCycle(t *testing.T) {
	loc := jakarta(t)
	svc, st := newLedgerService(t, time.Date(2024, 3, 28, 0, 5, 0, 0, loc))
	ctx := context.Background()

	// First check on the rollover day sees an empty ledger. The cycle must
	// still be marked so income arriving later the same day is untouched.
	_, applied, err := svc.EnsureRollover(ctx, "owner-1")
	if err != nil {
		t.Fatalf("EnsureRollover() error = %v", err)
	}
	if applied {
		t.Error("EnsureRollover() must not synthesize a reset on a zero balance")
	}
	marked, err := st.HasRolloverMarker(ctx, "owner-1", "2024-03")
	if err != nil {
		t.Fatalf("HasRolloverMarker() error = %v", err)
	}
	if !marked {
		t.Fatal("cycle must be marked even when no reset was due")
	}

	if _, err := svc.AddSalary(ctx, "owner-1", core.Money{Cents: 150000}, "march pay"); err != nil {
		t.Fatalf("AddSalary() error = %v", err)
	}

	_, applied, err = svc.EnsureRollover(ctx, "owner-1")
	if err != nil {
		t.Fatalf("EnsureRollover() second call error = %v", err)
	}
	if applied {
		t.Error("salary recorded after the cycle check must survive the day")
	}
	balance, err := svc.GlobalBalance(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GlobalBalance() error = %v", err)
	}
	if balance.Cents != 150000 {
		t.Errorf("balance = %d, want 150000 untouched", balance.Cents)
	}
}

func TestLedgerService_EnsureRollover_Concurrent(t *testing.T) {
	loc := jakarta(t)
	svc, st := newLedgerService(t, time.Date(2024, 3, 28, 8, 0, 0, 0, loc))
	ctx := context.Background()

	if _, err := svc.AddTransaction(ctx, core.Transaction{
		OwnerID: "owner-1", Scope: core.ScopeMonthly, Kind: core.KindIncome,
		Amount:     core.Money{Cents: 150000},
		Category:   "salary",
		OccurredAt: time.Date(2024, 3, 1, 9, 0, 0, 0, loc),
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	const workers = 8
	var (
		wg           sync.WaitGroup
		appliedCount int64
		mu           sync.Mutex
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := svc.EnsureRollover(ctx, "owner-1")
			if err != nil {
				t.Errorf("EnsureRollover() error = %v", err)
				return
			}
			if applied {
				mu.Lock()
				appliedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if appliedCount != 1 {
		t.Errorf("concurrent rollovers applied = %d, want exactly 1", appliedCount)
	}

	records, err := st.ListTransactions(ctx, "owner-1", store.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	resets := 0
	for _, r := range records {
		if r.Category == core.CategoryAutoReset {
			resets++
		}
	}
	if resets != 1 {
		t.Errorf("auto-reset records = %d, want 1", resets)
	}
}

func TestLedgerService_Categories(t *testing.T) {
	loc := jakarta(t)
	svc, _ := newLedgerService(t, time.Date(2024, 3, 20, 12, 0, 0, 0, loc))
	ctx := context.Background()

	for _, category := range []string{"food", "rent", "food"} {
		if _, err := svc.AddTransaction(ctx, core.Transaction{
			OwnerID: "owner-1", Scope: core.ScopeMonthly, Kind: core.KindExpense,
			Amount: core.Money{Cents: 100}, Category: category,
		}); err != nil {
			t.Fatalf("AddTransaction() error = %v", err)
		}
	}

	cats, err := svc.Categories(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	want := []string{core.CategoryAll, "food", "rent"}
	if len(cats) != len(want) {
		t.Fatalf("Categories() = %v, want %v", cats, want)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("Categories()[%d] = %v, want %v", i, cats[i], want[i])
		}
	}
}

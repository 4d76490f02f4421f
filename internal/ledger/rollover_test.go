package ledger

import (
	"testing"
	"time"

	"planora/internal/core"
)

func TestDefaultCycleKey(t *testing.T) {
	ref := time.Date(2024, 3, 28, 10, 0, 0, 0, time.UTC)
	if got := DefaultCycleKey(ref); got != "2024-03" {
		t.Fatalf("DefaultCycleKey = %q, want 2024-03", got)
	}
}

func TestPlanRolloverPositiveBalance(t *testing.T) {
	ref := time.Date(2024, 3, 28, 9, 0, 0, 0, time.UTC)
	all := []core.Transaction{
		tx(core.KindIncome, 200000, ref.AddDate(0, 0, -10), "salary"),
		tx(core.KindExpense, 50000, ref.AddDate(0, 0, -5), "food"),
	}

	planned, due := PlanRollover("owner-1", all, 28, ref)
	if !due {
		t.Fatal("expected rollover to be due")
	}
	if planned.Kind != core.KindExpense {
		t.Errorf("kind = %s, want expense for positive balance", planned.Kind)
	}
	if planned.Amount.Cents != 150000 {
		t.Errorf("amount = %d, want 150000", planned.Amount.Cents)
	}
	if planned.Category != core.CategoryAutoReset {
		t.Errorf("category = %q, want %q", planned.Category, core.CategoryAutoReset)
	}
	if !planned.OccurredAt.Equal(ref) {
		t.Errorf("occurred_at = %v, want %v", planned.OccurredAt, ref)
	}
	if err := planned.Validate(); err != nil {
		t.Errorf("planned transaction must validate: %v", err)
	}

	// Applying the planned transaction zeroes the global balance.
	if got := GlobalBalance(append(all, planned)); got.Cents != 0 {
		t.Errorf("balance after rollover = %d, want 0", got.Cents)
	}
}

func TestPlanRolloverNegativeBalance(t *testing.T) {
	ref := time.Date(2024, 3, 28, 9, 0, 0, 0, time.UTC)
	all := []core.Transaction{
		tx(core.KindExpense, 75000, ref.AddDate(0, 0, -3), "rent"),
	}
	planned, due := PlanRollover("owner-1", all, 28, ref)
	if !due {
		t.Fatal("expected rollover to be due")
	}
	if planned.Kind != core.KindIncome {
		t.Errorf("kind = %s, want income for negative balance", planned.Kind)
	}
	if planned.Amount.Cents != 75000 {
		t.Errorf("amount = %d, want 75000", planned.Amount.Cents)
	}
}

func TestPlanRolloverNotDue(t *testing.T) {
	all := []core.Transaction{
		tx(core.KindIncome, 1000, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "a"),
	}

	// Wrong day of month.
	if _, due := PlanRollover("o", all, 28, time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC)); due {
		t.Error("rollover must not be due off the rollover day")
	}
	// Zero balance on the rollover day.
	balanced := append(all, tx(core.KindExpense, 1000, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), "a"))
	if _, due := PlanRollover("o", balanced, 28, time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)); due {
		t.Error("rollover must not be due with zero balance")
	}
	// No records at all.
	if _, due := PlanRollover("o", nil, 28, time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)); due {
		t.Error("rollover must not be due with no records")
	}
}

package ledger

import (
	"fmt"
	"time"

	"planora/internal/core"
)

// DefaultRolloverDay is the day of month on which the salary-cycle reset
// runs when none is configured.
const DefaultRolloverDay = 28

// CycleKeyFunc derives the cycle key identifying one rollover window.
type CycleKeyFunc func(ref time.Time) string

// DefaultCycleKey keys cycles by calendar year and month, e.g. "2024-03".
func DefaultCycleKey(ref time.Time) string {
	return fmt.Sprintf("%04d-%02d", ref.Year(), int(ref.Month()))
}

// PlanRollover decides whether a balance rollover is due on ref and, if so,
// synthesizes the single balancing transaction that zeroes the owner's
// global balance: an expense when the balance is positive, an income when
// negative, amount equal to its magnitude, category "auto-reset".
//
// The function is pure; it neither checks nor writes the rollover marker.
// Callers must consult the marker for the cycle key first and must
// serialize the whole check-then-insert sequence per owner, otherwise two
// concurrent invocations can both plan a rollover (the documented
// duplicate-rollover race).
func PlanRollover(ownerID string, all []core.Transaction, rolloverDay int, ref time.Time) (core.Transaction, bool) {
	if ref.Day() != rolloverDay {
		return core.Transaction{}, false
	}
	balance := GlobalBalance(all)
	if balance.Cents == 0 {
		return core.Transaction{}, false
	}

	kind := core.KindExpense
	amount := balance.Cents
	if balance.Cents < 0 {
		kind = core.KindIncome
		amount = -balance.Cents
	}

	return core.Transaction{
		OwnerID:    ownerID,
		Scope:      core.ScopeMonthly,
		Kind:       kind,
		Amount:     core.Money{Cents: amount},
		Category:   core.CategoryAutoReset,
		Note:       fmt.Sprintf("Automatic balance reset on day %d", rolloverDay),
		OccurredAt: ref,
	}, true
}

package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ScopeDaily   Scope = "daily"
	ScopeWeekly  Scope = "weekly"
	ScopeMonthly Scope = "monthly"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Reserved categories written by the system rather than the user.
const (
	CategoryAutoReset = "auto-reset"
	CategorySalary    = "salary"
)

// CategoryAll is the sentinel category filter meaning "no filter".
const CategoryAll = "all"

type (
	// Scope is the granularity of a reporting window.
	Scope string

	// Kind determines the sign of a transaction's contribution to a balance.
	// Amounts themselves are always non-negative.
	Kind string

	// Transaction is a single dated ledger record owned by exactly one user.
	// Immutable once created except for deletion.
	Transaction struct {
		ID         string
		OwnerID    string
		Scope      Scope
		Kind       Kind
		Amount     Money
		Category   string
		Note       string
		OccurredAt time.Time
	}

	// RolloverMarker records that the balance rollover ran for one cycle.
	// At most one marker may exist per (owner, cycle key) pair; the
	// check-then-insert that enforces this is best-effort, not atomic.
	RolloverMarker struct {
		OwnerID   string
		CycleKey  string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidScope    = errors.New("invalid scope")
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyOwner      = errors.New("empty owner id")
	ErrEmptyCategory   = errors.New("empty category")
	ErrZeroOccurredAt  = errors.New("zero occurred_at")
	ErrEmptyCycleKey   = errors.New("empty cycle key")
	ErrCategoryTooLong = errors.New("category too long (max 100 characters)")
	ErrNoteTooLong     = errors.New("note too long (max 500 characters)")
)

// Valid reports whether s is one of the three supported scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeDaily, ScopeWeekly, ScopeMonthly:
		return true
	default:
		return false
	}
}

func (s Scope) String() string { return string(s) }

// Valid reports whether k is income or expense.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

func (k Kind) String() string { return string(k) }

// Sign returns +1 for income and -1 for expense.
func (k Kind) Sign() int64 {
	if k == KindExpense {
		return -1
	}
	return 1
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if !t.Scope.Valid() {
		return ErrInvalidScope
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > 100 {
		return ErrCategoryTooLong
	}
	if len(t.Note) > 500 {
		return ErrNoteTooLong
	}
	if t.OccurredAt.IsZero() {
		return ErrZeroOccurredAt
	}
	return nil
}

// Signed returns the transaction's contribution to a balance in cents.
func (t Transaction) Signed() int64 {
	return t.Kind.Sign() * t.Amount.Cents
}

func (m RolloverMarker) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(m.CycleKey) == "" {
		return ErrEmptyCycleKey
	}
	return nil
}

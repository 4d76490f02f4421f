// Package store defines the persistence ports the aggregation core consumes
// and a factory that selects a concrete backend from configuration.
//
// Every query is parameterized by the authenticated owner id. Row-level
// scoping is an enforced invariant of this layer, never trusted from
// client-supplied input alone.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planora/internal/core"
)

// ErrNotFound is returned when a record does not exist or belongs to a
// different owner; callers cannot distinguish the two cases.
var ErrNotFound = errors.New("record not found")

// PersistenceError wraps any failure of a persistence backend. The core
// never retries; callers decide retry and backoff policy.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WrapErr wraps err as a PersistenceError unless it is nil or already a
// domain sentinel like ErrNotFound.
func WrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// TransactionFilter narrows transaction listings. Zero values mean "no
// constraint"; From/To are inclusive instants in the reporting timezone.
type TransactionFilter struct {
	Scope    core.Scope
	From     *time.Time
	To       *time.Time
	Category string
}

// User is an identity-service account record.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type (
	TransactionStore interface {
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
		// ListTransactions returns the owner's records matching f, newest first.
		ListTransactions(ctx context.Context, ownerID string, f TransactionFilter) ([]core.Transaction, error)
		DeleteTransaction(ctx context.Context, ownerID, id string) error
	}

	// RolloverStore persists rollover markers. There is deliberately no
	// uniqueness constraint behind HasRolloverMarker/InsertRolloverMarker:
	// the check-then-insert is best-effort and must be serialized per owner
	// by the caller.
	RolloverStore interface {
		HasRolloverMarker(ctx context.Context, ownerID, cycleKey string) (bool, error)
		InsertRolloverMarker(ctx context.Context, m core.RolloverMarker) error
	}

	GoalStore interface {
		InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error)
		// ListGoals returns the owner's goals, optionally filtered by status.
		ListGoals(ctx context.Context, ownerID string, status core.GoalStatus) ([]core.Goal, error)
		UpdateGoal(ctx context.Context, g core.Goal) error
		// DeleteGoal removes the goal with its tasks and progress entries.
		DeleteGoal(ctx context.Context, ownerID, id string) error

		InsertGoalTask(ctx context.Context, t core.GoalTask) (core.GoalTask, error)
		// ListGoalTasks returns tasks ascending by order index.
		ListGoalTasks(ctx context.Context, goalID string) ([]core.GoalTask, error)
		SetGoalTaskCompleted(ctx context.Context, goalID, taskID string, completed bool) error
		DeleteGoalTask(ctx context.Context, goalID, taskID string) error

		InsertProgressEntry(ctx context.Context, e core.ProgressEntry) (core.ProgressEntry, error)
		ListProgressEntries(ctx context.Context, goalID string) ([]core.ProgressEntry, error)
	}

	TodoStore interface {
		InsertTodo(ctx context.Context, t core.Todo) (core.Todo, error)
		ListTodos(ctx context.Context, ownerID string) ([]core.Todo, error)
		SetTodoCompleted(ctx context.Context, ownerID, id string, completed bool) error
		DeleteTodo(ctx context.Context, ownerID, id string) error
	}

	UserStore interface {
		InsertUser(ctx context.Context, u User) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
	}

	// Store is the unified persistence surface a backend must provide.
	Store interface {
		TransactionStore
		RolloverStore
		GoalStore
		TodoStore
		UserStore
		Close() error
	}
)

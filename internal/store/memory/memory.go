// Package memory provides a mutex-guarded in-memory Store used for tests
// and local development without external services.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"planora/internal/core"
	"planora/internal/store"
)

type Store struct {
	mu           sync.Mutex
	transactions []core.Transaction
	markers      []core.RolloverMarker
	goals        map[string]core.Goal
	tasks        map[string][]core.GoalTask      // goal id -> tasks
	progress     map[string][]core.ProgressEntry // goal id -> entries
	todos        []core.Todo
	users        map[string]store.User // email -> user
	now          func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		goals:    make(map[string]core.Goal),
		tasks:    make(map[string][]core.GoalTask),
		progress: make(map[string][]core.ProgressEntry),
		users:    make(map[string]store.User),
		now:      time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, store.WrapErr("insert transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.transactions = append(s.transactions, t)
	return t, nil
}

func (s *Store) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id && t.OwnerID == ownerID {
			return t, nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, ownerID string, f store.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.OwnerID != ownerID {
			continue
		}
		if f.Scope != "" && t.Scope != f.Scope {
			continue
		}
		if f.From != nil && t.OccurredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && t.OccurredAt.After(*f.To) {
			continue
		}
		if f.Category != "" && f.Category != core.CategoryAll && t.Category != f.Category {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out, nil
}

func (s *Store) DeleteTransaction(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.ID == id && t.OwnerID == ownerID {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) HasRolloverMarker(_ context.Context, ownerID, cycleKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.markers {
		if m.OwnerID == ownerID && m.CycleKey == cycleKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertRolloverMarker(_ context.Context, m core.RolloverMarker) error {
	if err := m.Validate(); err != nil {
		return store.WrapErr("insert rollover marker", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.markers = append(s.markers, m)
	return nil
}

func (s *Store) InsertGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, store.WrapErr("insert goal", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, ownerID, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, ownerID string, status core.GoalStatus) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.OwnerID != ownerID {
			continue
		}
		if status != "" && g.Status != status {
			continue
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return store.WrapErr("update goal", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.goals[g.ID]
	if !ok || existing.OwnerID != g.OwnerID {
		return store.ErrNotFound
	}
	s.goals[g.ID] = g
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.goals, id)
	delete(s.tasks, id)
	delete(s.progress, id)
	return nil
}

func (s *Store) InsertGoalTask(_ context.Context, t core.GoalTask) (core.GoalTask, error) {
	if err := t.Validate(); err != nil {
		return core.GoalTask{}, store.WrapErr("insert goal task", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.tasks[t.GoalID] = append(s.tasks[t.GoalID], t)
	return t, nil
}

func (s *Store) ListGoalTasks(_ context.Context, goalID string) ([]core.GoalTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.GoalTask(nil), s.tasks[goalID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (s *Store) SetGoalTaskCompleted(_ context.Context, goalID, taskID string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks[goalID] {
		if t.ID == taskID {
			s.tasks[goalID][i].Completed = completed
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteGoalTask(_ context.Context, goalID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.tasks[goalID]
	for i, t := range tasks {
		if t.ID == taskID {
			s.tasks[goalID] = append(tasks[:i], tasks[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) InsertProgressEntry(_ context.Context, e core.ProgressEntry) (core.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.progress[e.GoalID] = append(s.progress[e.GoalID], e)
	return e, nil
}

func (s *Store) ListProgressEntries(_ context.Context, goalID string) ([]core.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.ProgressEntry(nil), s.progress[goalID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *Store) InsertTodo(_ context.Context, t core.Todo) (core.Todo, error) {
	if err := t.Validate(); err != nil {
		return core.Todo{}, store.WrapErr("insert todo", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.todos = append(s.todos, t)
	return t, nil
}

func (s *Store) ListTodos(_ context.Context, ownerID string) ([]core.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Todo
	for _, t := range s.todos {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetTodoCompleted(_ context.Context, ownerID, id string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.todos {
		if t.ID == id && t.OwnerID == ownerID {
			s.todos[i].Completed = completed
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteTodo(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.todos {
		if t.ID == id && t.OwnerID == ownerID {
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) InsertUser(_ context.Context, u store.User) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := s.users[email]; exists {
		return store.User{}, store.WrapErr("insert user", errDuplicateEmail)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.Email = email
	s.users[email] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

var errDuplicateEmail = errors.New("email already registered")

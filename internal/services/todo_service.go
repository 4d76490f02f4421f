package services

import (
	"context"
	"time"

	"planora/internal/core"
	"planora/internal/store"
)

type TodoService struct {
	store store.TodoStore
	now   func() time.Time
}

func NewTodoService(st store.TodoStore) *TodoService {
	return &TodoService{store: st, now: time.Now}
}

func (s *TodoService) Add(ctx context.Context, ownerID, text string) (core.Todo, error) {
	return s.store.InsertTodo(ctx, core.Todo{
		OwnerID:   ownerID,
		Text:      text,
		CreatedAt: s.now(),
	})
}

func (s *TodoService) List(ctx context.Context, ownerID string) ([]core.Todo, error) {
	return s.store.ListTodos(ctx, ownerID)
}

func (s *TodoService) SetCompleted(ctx context.Context, ownerID, id string, completed bool) error {
	return s.store.SetTodoCompleted(ctx, ownerID, id, completed)
}

func (s *TodoService) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteTodo(ctx, ownerID, id)
}

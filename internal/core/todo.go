package core

import (
	"errors"
	"strings"
	"time"
)

// Todo is a simple checklist item, independent of goals.
type Todo struct {
	ID        string
	OwnerID   string
	Text      string
	Completed bool
	CreatedAt time.Time
}

var ErrEmptyTodoText = errors.New("empty todo text")

func (t Todo) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyTodoText
	}
	if len(t.Text) > 500 {
		return errors.New("todo text too long (max 500 characters)")
	}
	return nil
}

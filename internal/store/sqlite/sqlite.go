// Package sqlite implements the persistence ports on an embedded SQLite
// database. Timestamps are stored as unix seconds and converted back at the
// boundary; callers always see time.Time values.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"planora/internal/core"
	"planora/internal/store"
)

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, store.WrapErr("insert transaction", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, scope, kind, amount_cents, category, note, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, string(t.Scope), string(t.Kind), t.Amount.Cents, t.Category, t.Note, t.OccurredAt.Unix())
	if err != nil {
		return core.Transaction{}, store.WrapErr("insert transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner_id", t.OwnerID,
		"kind", t.Kind,
		"amount_cents", t.Amount.Cents)

	return t, nil
}

func (r *Repository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	var (
		t          core.Transaction
		scopeStr   string
		kindStr    string
		occurredAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, scope, kind, amount_cents, category, note, occurred_at
		FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &scopeStr, &kindStr, &t.Amount.Cents, &t.Category, &t.Note, &occurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, store.WrapErr("get transaction", err)
	}
	t.Scope = core.Scope(scopeStr)
	t.Kind = core.Kind(kindStr)
	t.OccurredAt = time.Unix(occurredAt, 0)
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, ownerID string, f store.TransactionFilter) ([]core.Transaction, error) {
	query := `
		SELECT id, owner_id, scope, kind, amount_cents, category, note, occurred_at
		FROM transactions WHERE owner_id = ?`
	args := []any{ownerID}

	if f.Scope != "" {
		query += " AND scope = ?"
		args = append(args, string(f.Scope))
	}
	if f.From != nil {
		query += " AND occurred_at >= ?"
		args = append(args, f.From.Unix())
	}
	if f.To != nil {
		query += " AND occurred_at <= ?"
		args = append(args, f.To.Unix())
	}
	if f.Category != "" && f.Category != core.CategoryAll {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.WrapErr("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			scopeStr   string
			kindStr    string
			occurredAt int64
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &scopeStr, &kindStr, &t.Amount.Cents, &t.Category, &t.Note, &occurredAt); err != nil {
			return nil, store.WrapErr("scan transaction", err)
		}
		t.Scope = core.Scope(scopeStr)
		t.Kind = core.Kind(kindStr)
		t.OccurredAt = time.Unix(occurredAt, 0)
		out = append(out, t)
	}
	return out, store.WrapErr("list transactions", rows.Err())
}

func (r *Repository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return store.WrapErr("delete transaction", err)
	}
	return rowsAffectedOrNotFound(res, "delete transaction")
}

func (r *Repository) HasRolloverMarker(ctx context.Context, ownerID, cycleKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM rollover_markers WHERE owner_id = ? AND cycle_key = ?`,
		ownerID, cycleKey).Scan(&n)
	if err != nil {
		return false, store.WrapErr("check rollover marker", err)
	}
	return n > 0, nil
}

func (r *Repository) InsertRolloverMarker(ctx context.Context, m core.RolloverMarker) error {
	if err := m.Validate(); err != nil {
		return store.WrapErr("insert rollover marker", err)
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rollover_markers (owner_id, cycle_key, created_at) VALUES (?, ?, ?)`,
		m.OwnerID, m.CycleKey, created.Unix())
	return store.WrapErr("insert rollover marker", err)
}

func (r *Repository) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, store.WrapErr("insert goal", err)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	var deadline sql.NullInt64
	if g.Deadline != nil {
		deadline = sql.NullInt64{Int64: g.Deadline.Unix(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, owner_id, title, description, category, target_value, current_value, unit, deadline, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Title, g.Description, string(g.Category),
		g.TargetValue, g.CurrentValue, g.Unit, deadline, string(g.Status),
		g.CreatedAt.Unix(), g.UpdatedAt.Unix())
	if err != nil {
		return core.Goal{}, store.WrapErr("insert goal", err)
	}
	return g, nil
}

const goalColumns = `id, owner_id, title, description, category, target_value, current_value, unit, deadline, status, created_at, updated_at`

func (r *Repository) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND owner_id = ?`, id, ownerID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, store.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, store.WrapErr("get goal", err)
	}
	return g, nil
}

func (r *Repository) ListGoals(ctx context.Context, ownerID string, status core.GoalStatus) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = ?`
	args := []any{ownerID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.WrapErr("list goals", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, store.WrapErr("scan goal", err)
		}
		out = append(out, g)
	}
	return out, store.WrapErr("list goals", rows.Err())
}

func (r *Repository) UpdateGoal(ctx context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return store.WrapErr("update goal", err)
	}
	var deadline sql.NullInt64
	if g.Deadline != nil {
		deadline = sql.NullInt64{Int64: g.Deadline.Unix(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE goals SET title = ?, description = ?, category = ?, target_value = ?,
			current_value = ?, unit = ?, deadline = ?, status = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		g.Title, g.Description, string(g.Category), g.TargetValue,
		g.CurrentValue, g.Unit, deadline, string(g.Status), g.UpdatedAt.Unix(),
		g.ID, g.OwnerID)
	if err != nil {
		return store.WrapErr("update goal", err)
	}
	return rowsAffectedOrNotFound(res, "update goal")
}

func (r *Repository) DeleteGoal(ctx context.Context, ownerID, id string) error {
	// Tasks and progress entries cascade via foreign keys.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return store.WrapErr("delete goal", err)
	}
	return rowsAffectedOrNotFound(res, "delete goal")
}

func (r *Repository) InsertGoalTask(ctx context.Context, t core.GoalTask) (core.GoalTask, error) {
	if err := t.Validate(); err != nil {
		return core.GoalTask{}, store.WrapErr("insert goal task", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goal_tasks (id, goal_id, task, completed, order_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.GoalID, t.Task, boolToInt(t.Completed), t.OrderIndex, t.CreatedAt.Unix())
	if err != nil {
		return core.GoalTask{}, store.WrapErr("insert goal task", err)
	}
	return t, nil
}

func (r *Repository) ListGoalTasks(ctx context.Context, goalID string) ([]core.GoalTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, goal_id, task, completed, order_index, created_at
		FROM goal_tasks WHERE goal_id = ?
		ORDER BY order_index ASC, created_at ASC`, goalID)
	if err != nil {
		return nil, store.WrapErr("list goal tasks", err)
	}
	defer rows.Close()

	var out []core.GoalTask
	for rows.Next() {
		var (
			t         core.GoalTask
			completed int
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.GoalID, &t.Task, &completed, &t.OrderIndex, &createdAt); err != nil {
			return nil, store.WrapErr("scan goal task", err)
		}
		t.Completed = completed != 0
		t.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, t)
	}
	return out, store.WrapErr("list goal tasks", rows.Err())
}

func (r *Repository) SetGoalTaskCompleted(ctx context.Context, goalID, taskID string, completed bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goal_tasks SET completed = ? WHERE id = ? AND goal_id = ?`,
		boolToInt(completed), taskID, goalID)
	if err != nil {
		return store.WrapErr("set goal task completed", err)
	}
	return rowsAffectedOrNotFound(res, "set goal task completed")
}

func (r *Repository) DeleteGoalTask(ctx context.Context, goalID, taskID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM goal_tasks WHERE id = ? AND goal_id = ?`, taskID, goalID)
	if err != nil {
		return store.WrapErr("delete goal task", err)
	}
	return rowsAffectedOrNotFound(res, "delete goal task")
}

func (r *Repository) InsertProgressEntry(ctx context.Context, e core.ProgressEntry) (core.ProgressEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goal_progress (id, goal_id, date, value, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.GoalID, e.Date.Unix(), e.Value, e.Note, e.CreatedAt.Unix())
	if err != nil {
		return core.ProgressEntry{}, store.WrapErr("insert progress entry", err)
	}
	return e, nil
}

func (r *Repository) ListProgressEntries(ctx context.Context, goalID string) ([]core.ProgressEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, goal_id, date, value, note, created_at
		FROM goal_progress WHERE goal_id = ? ORDER BY date ASC`, goalID)
	if err != nil {
		return nil, store.WrapErr("list progress entries", err)
	}
	defer rows.Close()

	var out []core.ProgressEntry
	for rows.Next() {
		var (
			e         core.ProgressEntry
			date      int64
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.GoalID, &date, &e.Value, &e.Note, &createdAt); err != nil {
			return nil, store.WrapErr("scan progress entry", err)
		}
		e.Date = time.Unix(date, 0)
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	return out, store.WrapErr("list progress entries", rows.Err())
}

func (r *Repository) InsertTodo(ctx context.Context, t core.Todo) (core.Todo, error) {
	if err := t.Validate(); err != nil {
		return core.Todo{}, store.WrapErr("insert todo", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO todos (id, owner_id, text, completed, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Text, boolToInt(t.Completed), t.CreatedAt.Unix())
	if err != nil {
		return core.Todo{}, store.WrapErr("insert todo", err)
	}
	return t, nil
}

func (r *Repository) ListTodos(ctx context.Context, ownerID string) ([]core.Todo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, text, completed, created_at
		FROM todos WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, store.WrapErr("list todos", err)
	}
	defer rows.Close()

	var out []core.Todo
	for rows.Next() {
		var (
			t         core.Todo
			completed int
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Text, &completed, &createdAt); err != nil {
			return nil, store.WrapErr("scan todo", err)
		}
		t.Completed = completed != 0
		t.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, t)
	}
	return out, store.WrapErr("list todos", rows.Err())
}

func (r *Repository) SetTodoCompleted(ctx context.Context, ownerID, id string, completed bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE todos SET completed = ? WHERE id = ? AND owner_id = ?`,
		boolToInt(completed), id, ownerID)
	if err != nil {
		return store.WrapErr("set todo completed", err)
	}
	return rowsAffectedOrNotFound(res, "set todo completed")
}

func (r *Repository) DeleteTodo(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return store.WrapErr("delete todo", err)
	}
	return rowsAffectedOrNotFound(res, "delete todo")
}

func (r *Repository) InsertUser(ctx context.Context, u store.User) (store.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		return store.User{}, store.WrapErr("insert user", err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	var (
		u         store.User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, store.WrapErr("get user by email", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0)
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g           core.Goal
		category    string
		status      string
		deadline    sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.Title, &g.Description, &category,
		&g.TargetValue, &g.CurrentValue, &g.Unit, &deadline, &status, &createdAt, &updatedAt)
	if err != nil {
		return core.Goal{}, err
	}
	g.Category = core.GoalCategory(category)
	g.Status = core.GoalStatus(status)
	if deadline.Valid {
		d := time.Unix(deadline.Int64, 0)
		g.Deadline = &d
	}
	g.CreatedAt = time.Unix(createdAt, 0)
	g.UpdatedAt = time.Unix(updatedAt, 0)
	return g, nil
}

func rowsAffectedOrNotFound(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return store.WrapErr(op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

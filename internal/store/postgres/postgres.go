// Package postgres implements the persistence ports on PostgreSQL via a
// pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"planora/internal/core"
	"planora/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Repository)(nil)

func New(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	// The migrate pgx/v5 driver registers the pgx5 URL scheme.
	url := databaseURL
	if strings.HasPrefix(url, "postgres://") {
		url = "pgx5://" + strings.TrimPrefix(url, "postgres://")
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, url)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, store.WrapErr("insert transaction", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (id, owner_id, scope, kind, amount_cents, category, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.OwnerID, string(t.Scope), string(t.Kind), t.Amount.Cents, t.Category, t.Note, t.OccurredAt)
	if err != nil {
		return core.Transaction{}, store.WrapErr("insert transaction", err)
	}
	return t, nil
}

func (r *Repository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	var (
		t        core.Transaction
		scopeStr string
		kindStr  string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, scope, kind, amount_cents, category, note, occurred_at
		FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &scopeStr, &kindStr, &t.Amount.Cents, &t.Category, &t.Note, &t.OccurredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, store.WrapErr("get transaction", err)
	}
	t.Scope = core.Scope(scopeStr)
	t.Kind = core.Kind(kindStr)
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, ownerID string, f store.TransactionFilter) ([]core.Transaction, error) {
	query := `
		SELECT id, owner_id, scope, kind, amount_cents, category, note, occurred_at
		FROM transactions WHERE owner_id = $1`
	args := []any{ownerID}

	if f.Scope != "" {
		args = append(args, string(f.Scope))
		query += fmt.Sprintf(" AND scope = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}
	if f.Category != "" && f.Category != core.CategoryAll {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.WrapErr("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t        core.Transaction
			scopeStr string
			kindStr  string
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &scopeStr, &kindStr, &t.Amount.Cents, &t.Category, &t.Note, &t.OccurredAt); err != nil {
			return nil, store.WrapErr("scan transaction", err)
		}
		t.Scope = core.Scope(scopeStr)
		t.Kind = core.Kind(kindStr)
		out = append(out, t)
	}
	return out, store.WrapErr("list transactions", rows.Err())
}

func (r *Repository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return store.WrapErr("delete transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) HasRolloverMarker(ctx context.Context, ownerID, cycleKey string) (bool, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM rollover_markers WHERE owner_id = $1 AND cycle_key = $2`,
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
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rollover_markers (owner_id, cycle_key, created_at) VALUES ($1, $2, $3)`,
		m.OwnerID, m.CycleKey, created)
	return store.WrapErr("insert rollover marker", err)
}

const goalColumns = `id, owner_id, title, description, category, target_value, current_value, unit, deadline, status, created_at, updated_at`

func (r *Repository) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, store.WrapErr("insert goal", err)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.OwnerID, g.Title, g.Description, string(g.Category),
		g.TargetValue, g.CurrentValue, g.Unit, g.Deadline, string(g.Status),
		g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return core.Goal{}, store.WrapErr("insert goal", err)
	}
	return g, nil
}

func (r *Repository) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND owner_id = $2`, id, ownerID)
	g, err := scanGoal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Goal{}, store.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, store.WrapErr("get goal", err)
	}
	return g, nil
}

func (r *Repository) ListGoals(ctx context.Context, ownerID string, status core.GoalStatus) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = $1`
	args := []any{ownerID}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
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
	tag, err := r.pool.Exec(ctx, `
		UPDATE goals SET title = $1, description = $2, category = $3, target_value = $4,
			current_value = $5, unit = $6, deadline = $7, status = $8, updated_at = $9
		WHERE id = $10 AND owner_id = $11`,
		g.Title, g.Description, string(g.Category), g.TargetValue,
		g.CurrentValue, g.Unit, g.Deadline, string(g.Status), g.UpdatedAt,
		g.ID, g.OwnerID)
	if err != nil {
		return store.WrapErr("update goal", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteGoal(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM goals WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return store.WrapErr("delete goal", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
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
	_, err := r.pool.Exec(ctx, `
		INSERT INTO goal_tasks (id, goal_id, task, completed, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.GoalID, t.Task, t.Completed, t.OrderIndex, t.CreatedAt)
	if err != nil {
		return core.GoalTask{}, store.WrapErr("insert goal task", err)
	}
	return t, nil
}

func (r *Repository) ListGoalTasks(ctx context.Context, goalID string) ([]core.GoalTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, goal_id, task, completed, order_index, created_at
		FROM goal_tasks WHERE goal_id = $1
		ORDER BY order_index ASC, created_at ASC`, goalID)
	if err != nil {
		return nil, store.WrapErr("list goal tasks", err)
	}
	defer rows.Close()

	var out []core.GoalTask
	for rows.Next() {
		var t core.GoalTask
		if err := rows.Scan(&t.ID, &t.GoalID, &t.Task, &t.Completed, &t.OrderIndex, &t.CreatedAt); err != nil {
			return nil, store.WrapErr("scan goal task", err)
		}
		out = append(out, t)
	}
	return out, store.WrapErr("list goal tasks", rows.Err())
}

func (r *Repository) SetGoalTaskCompleted(ctx context.Context, goalID, taskID string, completed bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE goal_tasks SET completed = $1 WHERE id = $2 AND goal_id = $3`,
		completed, taskID, goalID)
	if err != nil {
		return store.WrapErr("set goal task completed", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteGoalTask(ctx context.Context, goalID, taskID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM goal_tasks WHERE id = $1 AND goal_id = $2`, taskID, goalID)
	if err != nil {
		return store.WrapErr("delete goal task", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) InsertProgressEntry(ctx context.Context, e core.ProgressEntry) (core.ProgressEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO goal_progress (id, goal_id, date, value, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.GoalID, e.Date, e.Value, e.Note, e.CreatedAt)
	if err != nil {
		return core.ProgressEntry{}, store.WrapErr("insert progress entry", err)
	}
	return e, nil
}

func (r *Repository) ListProgressEntries(ctx context.Context, goalID string) ([]core.ProgressEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, goal_id, date, value, note, created_at
		FROM goal_progress WHERE goal_id = $1 ORDER BY date ASC`, goalID)
	if err != nil {
		return nil, store.WrapErr("list progress entries", err)
	}
	defer rows.Close()

	var out []core.ProgressEntry
	for rows.Next() {
		var e core.ProgressEntry
		if err := rows.Scan(&e.ID, &e.GoalID, &e.Date, &e.Value, &e.Note, &e.CreatedAt); err != nil {
			return nil, store.WrapErr("scan progress entry", err)
		}
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
	_, err := r.pool.Exec(ctx, `
		INSERT INTO todos (id, owner_id, text, completed, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.OwnerID, t.Text, t.Completed, t.CreatedAt)
	if err != nil {
		return core.Todo{}, store.WrapErr("insert todo", err)
	}
	return t, nil
}

func (r *Repository) ListTodos(ctx context.Context, ownerID string) ([]core.Todo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, text, completed, created_at
		FROM todos WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, store.WrapErr("list todos", err)
	}
	defer rows.Close()

	var out []core.Todo
	for rows.Next() {
		var t core.Todo
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Text, &t.Completed, &t.CreatedAt); err != nil {
			return nil, store.WrapErr("scan todo", err)
		}
		out = append(out, t)
	}
	return out, store.WrapErr("list todos", rows.Err())
}

func (r *Repository) SetTodoCompleted(ctx context.Context, ownerID, id string, completed bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE todos SET completed = $1 WHERE id = $2 AND owner_id = $3`,
		completed, id, ownerID)
	if err != nil {
		return store.WrapErr("set todo completed", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteTodo(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM todos WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return store.WrapErr("delete todo", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) InsertUser(ctx context.Context, u store.User) (store.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return store.User{}, store.WrapErr("insert user", err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	var u store.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, store.WrapErr("get user by email", err)
	}
	return u, nil
}

func scanGoal(row pgx.Row) (core.Goal, error) {
	var (
		g        core.Goal
		category string
		status   string
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.Title, &g.Description, &category,
		&g.TargetValue, &g.CurrentValue, &g.Unit, &g.Deadline, &status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return core.Goal{}, err
	}
	g.Category = core.GoalCategory(category)
	g.Status = core.GoalStatus(status)
	return g, nil
}

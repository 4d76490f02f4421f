package services

import (
	"context"
	"fmt"
	"time"

	"planora/internal/core"
	"planora/internal/goals"
	"planora/internal/log"
	"planora/internal/scope"
	"planora/internal/store"
)

// GoalDetail is a goal decorated with its tasks and derived progress
// figures, ready for display.
type GoalDetail struct {
	Goal           core.Goal
	Tasks          []core.GoalTask
	TaskProgress   goals.Progress
	TargetProgress float64
	HasTarget      bool
	DaysRemaining  int
	HasDeadline    bool
}

type GoalService struct {
	store    store.GoalStore
	resolver *scope.Resolver
	logger   *log.Logger
	now      func() time.Time
}

func NewGoalService(st store.GoalStore, resolver *scope.Resolver, logger *log.Logger) *GoalService {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentGoals)
	}
	return &GoalService{
		store:    st,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateGoal stores a new goal. Status defaults to active.
func (s *GoalService) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	now := s.now()
	g.CreatedAt = now
	g.UpdatedAt = now

	saved, err := s.store.InsertGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}

	s.logger.InfoContext(ctx, "Goal created",
		log.FieldOwnerID, saved.OwnerID,
		log.FieldGoalID, saved.ID,
		log.FieldCategory, string(saved.Category))

	return saved, nil
}

// GetGoal returns one goal with tasks and progress decoration.
func (s *GoalService) GetGoal(ctx context.Context, ownerID, id string) (GoalDetail, error) {
	g, err := s.store.GetGoal(ctx, ownerID, id)
	if err != nil {
		return GoalDetail{}, err
	}
	return s.decorate(ctx, g)
}

// ListGoals returns the owner's goals, optionally filtered by status, each
// decorated with tasks and progress.
func (s *GoalService) ListGoals(ctx context.Context, ownerID string, status core.GoalStatus) ([]GoalDetail, error) {
	gs, err := s.store.ListGoals(ctx, ownerID, status)
	if err != nil {
		return nil, err
	}

	details := make([]GoalDetail, 0, len(gs))
	for _, g := range gs {
		d, err := s.decorate(ctx, g)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

// Overview aggregates the header statistics across all the owner's goals.
func (s *GoalService) Overview(ctx context.Context, ownerID string) (goals.Stats, error) {
	gs, err := s.store.ListGoals(ctx, ownerID, "")
	if err != nil {
		return goals.Stats{}, err
	}

	withTasks := make(map[*core.Goal][]core.GoalTask, len(gs))
	for i := range gs {
		tasks, err := s.store.ListGoalTasks(ctx, gs[i].ID)
		if err != nil {
			return goals.Stats{}, err
		}
		withTasks[&gs[i]] = tasks
	}
	return goals.Overview(withTasks), nil
}

// UpdateGoal applies caller-supplied fields and bumps the update time.
func (s *GoalService) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.UpdatedAt = s.now()
	if err := s.store.UpdateGoal(ctx, g); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

// SetStatus moves a goal to any of the three states. There is no state
// machine; every transition is allowed by explicit user action.
func (s *GoalService) SetStatus(ctx context.Context, ownerID, id string, status core.GoalStatus) (core.Goal, error) {
	if !status.Valid() {
		return core.Goal{}, core.ErrInvalidGoalStatus
	}
	g, err := s.store.GetGoal(ctx, ownerID, id)
	if err != nil {
		return core.Goal{}, err
	}
	g.Status = status
	return s.UpdateGoal(ctx, g)
}

func (s *GoalService) DeleteGoal(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteGoal(ctx, ownerID, id)
}

// AddTask appends a breakdown task to the goal, assigning the next order
// index past the current maximum.
func (s *GoalService) AddTask(ctx context.Context, ownerID, goalID, text string) (core.GoalTask, error) {
	if _, err := s.store.GetGoal(ctx, ownerID, goalID); err != nil {
		return core.GoalTask{}, err
	}

	existing, err := s.store.ListGoalTasks(ctx, goalID)
	if err != nil {
		return core.GoalTask{}, err
	}

	return s.store.InsertGoalTask(ctx, core.GoalTask{
		GoalID:     goalID,
		Task:       text,
		OrderIndex: goals.NextOrderIndex(existing),
		CreatedAt:  s.now(),
	})
}

// SetTaskCompleted toggles one task of an owner's goal.
func (s *GoalService) SetTaskCompleted(ctx context.Context, ownerID, goalID, taskID string, completed bool) error {
	if _, err := s.store.GetGoal(ctx, ownerID, goalID); err != nil {
		return err
	}
	return s.store.SetGoalTaskCompleted(ctx, goalID, taskID, completed)
}

func (s *GoalService) DeleteTask(ctx context.Context, ownerID, goalID, taskID string) error {
	if _, err := s.store.GetGoal(ctx, ownerID, goalID); err != nil {
		return err
	}
	return s.store.DeleteGoalTask(ctx, goalID, taskID)
}

// LogProgress appends a measurement toward the goal's numeric target and
// advances the goal's current value by the logged amount.
func (s *GoalService) LogProgress(ctx context.Context, ownerID, goalID string, value int64, note string, date time.Time) (core.ProgressEntry, error) {
	g, err := s.store.GetGoal(ctx, ownerID, goalID)
	if err != nil {
		return core.ProgressEntry{}, err
	}

	if date.IsZero() {
		date = s.now()
	}

	entry, err := s.store.InsertProgressEntry(ctx, core.ProgressEntry{
		GoalID:    goalID,
		Date:      date,
		Value:     value,
		Note:      note,
		CreatedAt: s.now(),
	})
	if err != nil {
		return core.ProgressEntry{}, err
	}

	g.CurrentValue += value
	if g.CurrentValue < 0 {
		g.CurrentValue = 0
	}
	if _, err := s.UpdateGoal(ctx, g); err != nil {
		return core.ProgressEntry{}, fmt.Errorf("advance goal value: %w", err)
	}

	return entry, nil
}

func (s *GoalService) ListProgress(ctx context.Context, ownerID, goalID string) ([]core.ProgressEntry, error) {
	if _, err := s.store.GetGoal(ctx, ownerID, goalID); err != nil {
		return nil, err
	}
	return s.store.ListProgressEntries(ctx, goalID)
}

func (s *GoalService) decorate(ctx context.Context, g core.Goal) (GoalDetail, error) {
	tasks, err := s.store.ListGoalTasks(ctx, g.ID)
	if err != nil {
		return GoalDetail{}, err
	}
	goals.SortTasks(tasks)

	d := GoalDetail{
		Goal:         g,
		Tasks:        tasks,
		TaskProgress: goals.TaskProgress(tasks),
	}
	d.TargetProgress, d.HasTarget = goals.TargetProgress(g)
	d.DaysRemaining, d.HasDeadline = goals.DaysRemaining(g, s.resolver.Today())
	return d, nil
}

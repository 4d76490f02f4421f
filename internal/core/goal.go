package core

import (
	"errors"
	"strings"
	"time"
)

const (
	GoalHealth    GoalCategory = "health"
	GoalFinance   GoalCategory = "finance"
	GoalCareer    GoalCategory = "career"
	GoalEducation GoalCategory = "education"
	GoalPersonal  GoalCategory = "personal"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalArchived  GoalStatus = "archived"
)

type (
	GoalCategory string

	// GoalStatus is a simple 3-state field, not a state machine: any state
	// is reachable from any other via explicit user action.
	GoalStatus string

	// Goal is a long-running objective with an optional numeric target.
	// TargetValue of zero means "no numeric target".
	Goal struct {
		ID           string
		OwnerID      string
		Title        string
		Description  string
		Category     GoalCategory
		TargetValue  int64
		CurrentValue int64
		Unit         string
		Deadline     *time.Time
		Status       GoalStatus
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// GoalTask is one breakdown step of a goal. OrderIndex values need not
	// be contiguous and are used only for relative ordering.
	GoalTask struct {
		ID         string
		GoalID     string
		Task       string
		Completed  bool
		OrderIndex int
		CreatedAt  time.Time
	}

	// ProgressEntry is one logged measurement toward a goal's numeric target.
	ProgressEntry struct {
		ID        string
		GoalID    string
		Date      time.Time
		Value     int64
		Note      string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyTitle          = errors.New("empty goal title")
	ErrTitleTooLong        = errors.New("goal title too long (max 200 characters)")
	ErrInvalidGoalCategory = errors.New("invalid goal category")
	ErrInvalidGoalStatus   = errors.New("invalid goal status")
	ErrNegativeTarget      = errors.New("negative target value")
	ErrEmptyTask           = errors.New("empty task text")
	ErrEmptyGoalID         = errors.New("empty goal id")
)

func (c GoalCategory) Valid() bool {
	switch c {
	case GoalHealth, GoalFinance, GoalCareer, GoalEducation, GoalPersonal:
		return true
	default:
		return false
	}
}

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalArchived:
		return true
	default:
		return false
	}
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if len(g.Title) > 200 {
		return ErrTitleTooLong
	}
	if !g.Category.Valid() {
		return ErrInvalidGoalCategory
	}
	if !g.Status.Valid() {
		return ErrInvalidGoalStatus
	}
	if g.TargetValue < 0 || g.CurrentValue < 0 {
		return ErrNegativeTarget
	}
	return nil
}

// HasTarget reports whether the goal tracks a numeric target at all.
func (g Goal) HasTarget() bool {
	return g.TargetValue > 0
}

func (t GoalTask) Validate() error {
	if strings.TrimSpace(t.GoalID) == "" {
		return ErrEmptyGoalID
	}
	if strings.TrimSpace(t.Task) == "" {
		return ErrEmptyTask
	}
	return nil
}

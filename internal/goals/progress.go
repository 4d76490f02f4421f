// Package goals derives progress figures for goals and their task
// breakdowns. Task-completion progress and numeric target progress are
// independent measures and are never conflated: a goal with no tasks has 0%
// task progress regardless of how far along its numeric target is.
package goals

import (
	"sort"
	"time"

	"planora/internal/core"
)

// Progress is task-completion progress over a goal's breakdown.
type Progress struct {
	Completed int
	Total     int
	Percent   float64
}

// Stats summarizes a set of goals for the overview header.
type Stats struct {
	Active          int
	Completed       int
	Archived        int
	AverageProgress float64
}

// TaskProgress computes completed/total over tasks as a percentage.
// An empty task list is 0%, not an error.
func TaskProgress(tasks []core.GoalTask) Progress {
	p := Progress{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = 100 * float64(p.Completed) / float64(p.Total)
	}
	return p
}

// TargetProgress computes current/target as a percentage. The second return
// is false when the goal has no numeric target (absent or zero). The value
// is not clamped: more than 100 signals over-achievement, and clamping for
// progress bars is the display layer's concern.
func TargetProgress(g core.Goal) (float64, bool) {
	if !g.HasTarget() {
		return 0, false
	}
	return 100 * float64(g.CurrentValue) / float64(g.TargetValue), true
}

// SortTasks orders tasks for display: ascending order index, ties broken by
// creation time, then id, so insertion order wins among equal indexes.
func SortTasks(tasks []core.GoalTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].OrderIndex != tasks[j].OrderIndex {
			return tasks[i].OrderIndex < tasks[j].OrderIndex
		}
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// NextOrderIndex returns the order index for a task appended after the
// existing ones: one past the current maximum, 0 for the first task.
// Indexes need not be contiguous, only monotonic for appends.
func NextOrderIndex(tasks []core.GoalTask) int {
	max := -1
	for _, t := range tasks {
		if t.OrderIndex > max {
			max = t.OrderIndex
		}
	}
	return max + 1
}

// DaysRemaining counts whole days from today until the goal's deadline.
// Negative means overdue. The second return is false when no deadline is
// set. today should be midnight in the reporting timezone.
func DaysRemaining(g core.Goal, today time.Time) (int, bool) {
	if g.Deadline == nil {
		return 0, false
	}
	d := g.Deadline.In(today.Location())
	y, m, day := d.Date()
	deadline := time.Date(y, m, day, 0, 0, 0, 0, today.Location())
	return int(deadline.Sub(today).Hours() / 24), true
}

// Overview aggregates header statistics over a user's goals. Average
// progress is the mean of per-goal task progress, 0 when there are no goals.
func Overview(goalsWithTasks map[*core.Goal][]core.GoalTask) Stats {
	var s Stats
	var sum float64
	for g, tasks := range goalsWithTasks {
		switch g.Status {
		case core.GoalActive:
			s.Active++
		case core.GoalCompleted:
			s.Completed++
		case core.GoalArchived:
			s.Archived++
		}
		sum += TaskProgress(tasks).Percent
	}
	if n := len(goalsWithTasks); n > 0 {
		s.AverageProgress = sum / float64(n)
	}
	return s
}

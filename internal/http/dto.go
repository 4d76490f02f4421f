package http

import (
	"time"

	"planora/internal/core"
	"planora/internal/goals"
	"planora/internal/ledger"
	"planora/internal/services"
)

// Wire representations. Amounts travel as integer cents plus a
// display-friendly unit value; dates as RFC 3339.

type transactionJSON struct {
	ID         string  `json:"id"`
	Scope      string  `json:"scope"`
	Kind       string  `json:"kind"`
	Cents      int64   `json:"cents"`
	Amount     float64 `json:"amount"`
	Category   string  `json:"category"`
	Note       string  `json:"note,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:         t.ID,
		Scope:      t.Scope.String(),
		Kind:       t.Kind.String(),
		Cents:      t.Amount.Cents,
		Amount:     t.Amount.Units(),
		Category:   t.Category,
		Note:       t.Note,
		OccurredAt: t.OccurredAt.Format(time.RFC3339),
	}
}

func toTransactionListJSON(ts []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

type bucketJSON struct {
	Label   string `json:"label"`
	Income  int64  `json:"income_cents"`
	Expense int64  `json:"expense_cents"`
}

type summaryJSON struct {
	Scope        string       `json:"scope"`
	Label        string       `json:"label"`
	Start        string       `json:"start"`
	End          string       `json:"end"`
	TotalIncome  int64        `json:"total_income_cents"`
	TotalExpense int64        `json:"total_expense_cents"`
	Balance      int64        `json:"balance_cents"`
	Count        int          `json:"count"`
	Series       []bucketJSON `json:"series"`
}

func toSummaryJSON(s ledger.Summary) summaryJSON {
	series := make([]bucketJSON, 0, len(s.Series))
	for _, b := range s.Series {
		series = append(series, bucketJSON{
			Label:   b.Label,
			Income:  b.Income.Cents,
			Expense: b.Expense.Cents,
		})
	}
	return summaryJSON{
		Scope:        s.Window.Kind.String(),
		Label:        s.Window.Label,
		Start:        s.Window.Start.Format(time.RFC3339),
		End:          s.Window.End.Format(time.RFC3339),
		TotalIncome:  s.TotalIncome.Cents,
		TotalExpense: s.TotalExpense.Cents,
		Balance:      s.Balance.Cents,
		Count:        s.Count,
		Series:       series,
	}
}

type goalTaskJSON struct {
	ID         string `json:"id"`
	Task       string `json:"task"`
	Completed  bool   `json:"completed"`
	OrderIndex int    `json:"order_index"`
}

type goalJSON struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Category       string         `json:"category"`
	Status         string         `json:"status"`
	TargetValue    int64          `json:"target_value"`
	CurrentValue   int64          `json:"current_value"`
	Unit           string         `json:"unit,omitempty"`
	Deadline       *string        `json:"deadline,omitempty"`
	TargetProgress float64        `json:"target_progress"`
	TaskProgress   float64        `json:"task_progress"`
	TasksCompleted int            `json:"tasks_completed"`
	TasksTotal     int            `json:"tasks_total"`
	DaysRemaining  *int           `json:"days_remaining,omitempty"`
	Tasks          []goalTaskJSON `json:"tasks"`
	CreatedAt      string         `json:"created_at"`
}

func toGoalJSON(d services.GoalDetail) goalJSON {
	tasks := make([]goalTaskJSON, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		tasks = append(tasks, goalTaskJSON{
			ID:         t.ID,
			Task:       t.Task,
			Completed:  t.Completed,
			OrderIndex: t.OrderIndex,
		})
	}

	out := goalJSON{
		ID:             d.Goal.ID,
		Title:          d.Goal.Title,
		Description:    d.Goal.Description,
		Category:       string(d.Goal.Category),
		Status:         string(d.Goal.Status),
		TargetValue:    d.Goal.TargetValue,
		CurrentValue:   d.Goal.CurrentValue,
		Unit:           d.Goal.Unit,
		TargetProgress: d.TargetProgress,
		TaskProgress:   d.TaskProgress.Percent,
		TasksCompleted: d.TaskProgress.Completed,
		TasksTotal:     d.TaskProgress.Total,
		Tasks:          tasks,
		CreatedAt:      d.Goal.CreatedAt.Format(time.RFC3339),
	}
	if d.Goal.Deadline != nil {
		deadline := d.Goal.Deadline.Format("2006-01-02")
		out.Deadline = &deadline
	}
	if d.HasDeadline {
		days := d.DaysRemaining
		out.DaysRemaining = &days
	}
	return out
}

type goalStatsJSON struct {
	Active          int     `json:"active"`
	Completed       int     `json:"completed"`
	Archived        int     `json:"archived"`
	AverageProgress float64 `json:"average_progress"`
}

func toGoalStatsJSON(s goals.Stats) goalStatsJSON {
	return goalStatsJSON{
		Active:          s.Active,
		Completed:       s.Completed,
		Archived:        s.Archived,
		AverageProgress: s.AverageProgress,
	}
}

type progressEntryJSON struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Value int64  `json:"value"`
	Note  string `json:"note,omitempty"`
}

func toProgressListJSON(entries []core.ProgressEntry) []progressEntryJSON {
	out := make([]progressEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, progressEntryJSON{
			ID:    e.ID,
			Date:  e.Date.Format("2006-01-02"),
			Value: e.Value,
			Note:  e.Note,
		})
	}
	return out
}

type todoJSON struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"created_at"`
}

func toTodoJSON(t core.Todo) todoJSON {
	return todoJSON{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

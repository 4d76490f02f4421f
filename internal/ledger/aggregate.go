// Package ledger reduces in-memory transaction snapshots into display-ready
// summaries and owns the monthly balance rollover rule.
//
// Everything here is a pure function over an already-fetched record set: no
// I/O, no ordering requirements beyond operating on a consistent snapshot
// supplied by the caller.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"planora/internal/core"
	"planora/internal/scope"
)

// Bucket is one slot of a time-bucketed series: an hour of the day, a day
// of the week, or a day of the month.
type Bucket struct {
	Label   string
	Income  core.Money
	Expense core.Money
}

// Summary is the aggregation result for one scope window. Balance is
// scoped to the window; it is NOT the all-time balance (see GlobalBalance).
type Summary struct {
	Window       scope.Window
	TotalIncome  core.Money
	TotalExpense core.Money
	Balance      core.Money
	Series       []Bucket
	Count        int
}

// Aggregate filters records to the window (boundaries inclusive) and the
// optional category, then computes totals and the bucketed series.
//
// categoryFilter of "" or the sentinel "all" disables category filtering.
// An empty record set yields a zeroed summary, never an error.
func Aggregate(records []core.Transaction, w scope.Window, categoryFilter string) Summary {
	s := Summary{Window: w}

	var matched []core.Transaction
	for _, t := range records {
		if !w.Contains(t.OccurredAt) {
			continue
		}
		if categoryFilter != "" && categoryFilter != core.CategoryAll && t.Category != categoryFilter {
			continue
		}
		matched = append(matched, t)
		switch t.Kind {
		case core.KindIncome:
			s.TotalIncome.Cents += t.Amount.Cents
		case core.KindExpense:
			s.TotalExpense.Cents += t.Amount.Cents
		}
	}
	s.Count = len(matched)
	s.Balance = core.Money{Cents: s.TotalIncome.Cents - s.TotalExpense.Cents}
	s.Series = buildSeries(matched, w)
	return s
}

// GlobalBalance is the all-time, unscoped balance over every record of a
// user. It feeds the rollover rule and the header display only; do not
// confuse it with the window-scoped Summary.Balance.
func GlobalBalance(records []core.Transaction) core.Money {
	var cents int64
	for _, t := range records {
		cents += t.Signed()
	}
	return core.Money{Cents: cents}
}

// Categories returns the distinct categories present in records, sorted,
// with the "all" sentinel first. Mirrors the filter dropdown contents.
func Categories(records []core.Transaction) []string {
	seen := make(map[string]bool)
	var cats []string
	for _, t := range records {
		if t.Category == "" || seen[t.Category] {
			continue
		}
		seen[t.Category] = true
		cats = append(cats, t.Category)
	}
	sort.Strings(cats)
	return append([]string{core.CategoryAll}, cats...)
}

// buildSeries dispatches on the window kind. Weekly and monthly series are
// fixed-length and zero-filled; daily carries only the hours present.
func buildSeries(matched []core.Transaction, w scope.Window) []Bucket {
	switch w.Kind {
	case core.ScopeDaily:
		return hourlySeries(matched, w)
	case core.ScopeWeekly:
		return daySeries(matched, w, 7, weekdayLabels(w))
	case core.ScopeMonthly:
		return daySeries(matched, w, w.Days(), dayOfMonthLabels(w.Days()))
	default:
		return nil
	}
}

// hourlySeries produces one bucket per distinct hour of day present in the
// records, ascending 00-23, in the window's timezone.
func hourlySeries(matched []core.Transaction, w scope.Window) []Bucket {
	loc := w.Start.Location()
	byHour := make(map[int]*Bucket)
	for _, t := range matched {
		h := t.OccurredAt.In(loc).Hour()
		b, ok := byHour[h]
		if !ok {
			b = &Bucket{Label: fmt.Sprintf("%02d:00", h)}
			byHour[h] = b
		}
		addToBucket(b, t)
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	series := make([]Bucket, 0, len(hours))
	for _, h := range hours {
		series = append(series, *byHour[h])
	}
	return series
}

// daySeries produces a fixed number of per-day buckets starting at the
// window start, zero-filled where no records fall.
func daySeries(matched []core.Transaction, w scope.Window, n int, labels []string) []Bucket {
	loc := w.Start.Location()
	series := make([]Bucket, n)
	for i := range series {
		series[i].Label = labels[i]
	}
	startY, startM, startD := w.Start.Date()
	startDay := time.Date(startY, startM, startD, 0, 0, 0, 0, loc)
	for _, t := range matched {
		local := t.OccurredAt.In(loc)
		y, m, d := local.Date()
		idx := daysBetween(startDay, time.Date(y, m, d, 0, 0, 0, 0, loc))
		if idx < 0 || idx >= n {
			continue
		}
		addToBucket(&series[idx], t)
	}
	return series
}

func addToBucket(b *Bucket, t core.Transaction) {
	switch t.Kind {
	case core.KindIncome:
		b.Income.Cents += t.Amount.Cents
	case core.KindExpense:
		b.Expense.Cents += t.Amount.Cents
	}
}

// daysBetween counts whole calendar days from a to b, both at midnight in
// the same location. Rounding absorbs DST-shortened days.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Round(24*time.Hour) / (24 * time.Hour))
}

func weekdayLabels(w scope.Window) []string {
	labels := make([]string, 7)
	for i := 0; i < 7; i++ {
		labels[i] = w.Start.AddDate(0, 0, i).Format("Mon")
	}
	return labels
}

func dayOfMonthLabels(days int) []string {
	labels := make([]string, days)
	for i := range labels {
		labels[i] = fmt.Sprintf("%d", i+1)
	}
	return labels
}

// Package scope computes canonical reporting windows for the daily, weekly
// and monthly views.
//
// All boundary math runs on date components already converted into a fixed
// reporting timezone, never on naive UTC offset shifts; this is the single
// place in the codebase where wall-clock "now" is interpreted, so every
// consumer agrees on what "today" means.
package scope

import (
	"fmt"
	"time"

	"planora/internal/core"
)

// DefaultTimezone is the reporting timezone used when none is configured.
const DefaultTimezone = "Asia/Jakarta"

// Window is a resolved reporting window. Start and End are inclusive.
type Window struct {
	Kind  core.Scope
	Start time.Time
	End   time.Time
	Label string
}

// Days returns the number of calendar days the window spans.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Contains reports whether t falls inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Resolver resolves scope windows in a fixed reporting timezone.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Resolver for the named timezone (IANA name).
func New(tz string) (*Resolver, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load reporting timezone %q: %w", tz, err)
	}
	return &Resolver{loc: loc, now: time.Now}, nil
}

// NewWithClock is New with an injectable clock, for tests.
func NewWithClock(tz string, now func() time.Time) (*Resolver, error) {
	r, err := New(tz)
	if err != nil {
		return nil, err
	}
	r.now = now
	return r, nil
}

// Location returns the reporting timezone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Now returns the current instant in the reporting timezone.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

// Today returns midnight of the current day in the reporting timezone.
func (r *Resolver) Today() time.Time {
	y, m, d := r.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

// Resolve computes the window for kind anchored at ref.
//
// For daily, ref's calendar date IS the window and offset is ignored: daily
// navigation supplies an absolute date rather than a relative count. Weekly
// and monthly interpret offset as a signed count of weeks/months relative
// to the week/month containing ref (0 = current, negative = past).
func (r *Resolver) Resolve(kind core.Scope, offset int, ref time.Time) (Window, error) {
	local := ref.In(r.loc)
	y, m, d := local.Date()

	switch kind {
	case core.ScopeDaily:
		start := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
		return Window{
			Kind:  core.ScopeDaily,
			Start: start,
			End:   endOfDay(start),
			Label: start.Format("Monday, 2 January 2006"),
		}, nil

	case core.ScopeWeekly:
		// Week starts on Sunday. time.Weekday has Sunday == 0, so the
		// weekday number is exactly the days to subtract.
		start := time.Date(y, m, d, 0, 0, 0, 0, r.loc).
			AddDate(0, 0, -int(local.Weekday())+offset*7)
		last := start.AddDate(0, 0, 6)
		return Window{
			Kind:  core.ScopeWeekly,
			Start: start,
			End:   endOfDay(last),
			Label: start.Format("2 Jan") + " - " + last.Format("2 Jan 2006"),
		}, nil

	case core.ScopeMonthly:
		start := time.Date(y, time.Month(int(m)+offset), 1, 0, 0, 0, 0, r.loc)
		// Day zero of the next month is the last day of this one; handles
		// variable month lengths and leap years.
		last := time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, r.loc)
		return Window{
			Kind:  core.ScopeMonthly,
			Start: start,
			End:   endOfDay(last),
			Label: start.Format("January 2006"),
		}, nil

	default:
		return Window{}, fmt.Errorf("%w: %q", core.ErrInvalidScope, kind)
	}
}

// DaysInMonth returns the length of the month containing ref, in the
// reporting timezone.
func (r *Resolver) DaysInMonth(ref time.Time) int {
	local := ref.In(r.loc)
	return time.Date(local.Year(), local.Month()+1, 0, 0, 0, 0, 0, r.loc).Day()
}

// endOfDay builds 23:59:59 of the same calendar day from components, which
// stays correct across DST transitions in zones that have them.
func endOfDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, day.Location())
}

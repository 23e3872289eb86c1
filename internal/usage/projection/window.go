package projection

import "time"

// Window is a half-open interval [Start, End). A zero Start leaves the lower
// bound open; a zero End leaves the upper bound open.
type Window struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether neither bound is set.
func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// MonthWindow returns the half-open window covering the calendar month that
// contains t, in UTC.
func MonthWindow(t time.Time) Window {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

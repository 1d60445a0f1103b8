// Package schedule holds the time primitives shared by tasks and the scheduler.
package schedule

import "time"

// NextRun is either a scheduled instant or "not scheduled".
// The zero value is not scheduled.
type NextRun struct {
	at        time.Time
	scheduled bool
}

// At schedules a run at t.
func At(t time.Time) NextRun {
	return NextRun{at: t, scheduled: true}
}

// Unscheduled means the task has nothing to do until something changes.
func Unscheduled() NextRun {
	return NextRun{}
}

// Time returns the instant and whether the run is scheduled at all.
func (n NextRun) Time() (time.Time, bool) {
	return n.at, n.scheduled
}

// Scheduled reports whether the run has an instant.
func (n NextRun) Scheduled() bool {
	return n.scheduled
}

// Before orders scheduled runs ahead of unscheduled ones.
func (n NextRun) Before(o NextRun) bool {
	switch {
	case !n.scheduled:
		return false
	case !o.scheduled:
		return true
	default:
		return n.at.Before(o.at)
	}
}

// NotBefore delays a scheduled run to t if it is earlier.
func (n NextRun) NotBefore(t time.Time) NextRun {
	if n.scheduled && n.at.Before(t) {
		return At(t)
	}
	return n
}

func (n NextRun) String() string {
	if !n.scheduled {
		return "unscheduled"
	}
	return n.at.UTC().Format(time.RFC3339)
}

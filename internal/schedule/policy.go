package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Policy computes the next run from the last reference instant.
type Policy interface {
	Next(last time.Time) time.Time
	String() string
}

type every time.Duration

// Every runs once per period after the last reference instant.
func Every(period time.Duration) Policy {
	return every(period)
}

func (e every) Next(last time.Time) time.Time {
	return last.Add(time.Duration(e))
}

func (e every) String() string {
	return "every " + time.Duration(e).String()
}

type cronPolicy struct {
	spec  string
	sched cron.Schedule
}

// Cron runs at the first activation of a standard 5-field cron spec
// (descriptors such as @daily included) after the last reference instant.
// Activations are evaluated in UTC.
func Cron(spec string) (Policy, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing cron spec %q: %w", spec, err)
	}
	return cronPolicy{spec: spec, sched: sched}, nil
}

func (c cronPolicy) Next(last time.Time) time.Time {
	return c.sched.Next(last.UTC())
}

func (c cronPolicy) String() string {
	return "cron " + c.spec
}

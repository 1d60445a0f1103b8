// Package task binds schedules and retention strategies to backend capabilities.
package task

import (
	"context"
	"time"

	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/schedule"
)

// Kind names the family of a task.
type Kind string

const (
	KindSnapshot    Kind = "snapshot"
	KindReplication Kind = "replication"
	KindPrune       Kind = "prune"
)

// History is what the scheduler remembers about past runs of a task.
type History struct {
	LastRun time.Time
	LastErr error
	Runs    int
}

// Ran reports whether the task has run at least once.
func (h History) Ran() bool {
	return h.Runs > 0
}

// Task is a unit of scheduled work. Tasks keep no state between calls;
// everything they decide on is read back from the backend.
type Task interface {
	Name() string
	Kind() Kind
	NextRun(ctx context.Context, h History) (schedule.NextRun, error)
	Run(ctx context.Context) error
}

// Option tunes a task.
type Option func(*base)

// WithClock replaces the system clock.
func WithClock(c schedule.Clock) Option {
	return func(b *base) { b.clock = c }
}

// WithLogger sets the task logger.
func WithLogger(l logging.Logger) Option {
	return func(b *base) { b.log = l }
}

type base struct {
	name  string
	kind  Kind
	clock schedule.Clock
	log   logging.Logger
}

func newBase(name string, kind Kind, opts []Option) base {
	b := base{name: name, kind: kind, clock: schedule.SystemClock{}, log: logging.Nop()}
	for _, o := range opts {
		o(&b)
	}
	b.log = b.log.With(logging.Component, "task", "task", name, "kind", string(kind))
	return b
}

func (b *base) Name() string { return b.name }
func (b *base) Kind() Kind   { return b.kind }

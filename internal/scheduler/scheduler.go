// Package scheduler drives a fixed set of tasks, one at a time, in next-run order.
package scheduler

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/mailbox"
	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/task"
)

// Recorder receives scheduler metrics.
type Recorder interface {
	TaskFinished(kind string, err error, elapsed time.Duration)
	NextRun(task string, at time.Time, scheduled bool)
}

// Options configures a Scheduler. Zero fields take defaults.
type Options struct {
	Clock schedule.Clock
	// IdlePoll bounds the sleep when no task is scheduled.
	IdlePoll time.Duration
	// RetryDelay is the minimum distance between two starts of a task that
	// failed or asked to run again immediately.
	RetryDelay time.Duration
	Log        logging.Logger
	Metrics    Recorder
}

// Scheduler owns its tasks for its whole lifetime. Only Run touches them;
// Status and Wake may be called from any goroutine.
type Scheduler struct {
	tasks   []task.Task
	history []task.History
	next    []schedule.NextRun
	nextErr []error

	clock      schedule.Clock
	idlePoll   time.Duration
	retryDelay time.Duration
	log        logging.Logger
	metrics    Recorder
	wake       *mailbox.Mailbox[struct{}]
	entropy    io.Reader

	mu     sync.Mutex
	status Status
}

// New returns a scheduler over tasks, in registration order.
func New(tasks []task.Task, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = schedule.SystemClock{}
	}
	if opts.IdlePoll <= 0 {
		opts.IdlePoll = time.Hour
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Minute
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}

	s := &Scheduler{
		tasks:      append([]task.Task(nil), tasks...),
		history:    make([]task.History, len(tasks)),
		next:       make([]schedule.NextRun, len(tasks)),
		nextErr:    make([]error, len(tasks)),
		clock:      opts.Clock,
		idlePoll:   opts.IdlePoll,
		retryDelay: opts.RetryDelay,
		log:        opts.Log.With(logging.Component, "scheduler"),
		metrics:    opts.Metrics,
		wake:       mailbox.New[struct{}](),
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
	s.status.Tasks = make([]TaskStatus, len(tasks))
	for i, t := range tasks {
		s.status.Tasks[i] = TaskStatus{Name: t.Name(), Kind: string(t.Kind())}
	}
	return s
}

// Wake makes a sleeping scheduler recompute its schedule now.
func (s *Scheduler) Wake() {
	s.wake.Put(struct{}{})
}

// Run drives the tasks until ctx is done. Task failures never stop it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logging.Event, "start", "tasks", len(s.tasks))
	s.setRunning(-1, true)
	defer func() {
		s.setRunning(-1, false)
		s.log.Info("scheduler stopped", logging.Event, "stop")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		idx := s.plan(ctx)
		now := s.clock.Now()

		var wait time.Duration
		if idx < 0 {
			wait = s.idlePoll
		} else {
			at, _ := s.next[idx].Time()
			if !at.After(now) {
				s.runTask(ctx, idx)
				continue
			}
			wait = at.Sub(now)
		}
		if s.failingNextRuns() && wait > s.retryDelay {
			wait = s.retryDelay
		}

		s.log.Debug("sleeping", "wait", wait)
		if !s.sleep(ctx, wait) {
			return nil
		}
	}
}

// plan recomputes every next run and returns the task to consider, or -1.
// Equal instants go to the task registered first.
func (s *Scheduler) plan(ctx context.Context) int {
	best := -1
	for i, t := range s.tasks {
		nr, err := t.NextRun(ctx, s.history[i])
		s.nextErr[i] = err
		if err != nil {
			s.log.Warn("computing next run failed", "task", t.Name(), logging.ErrorKey, err)
			nr = schedule.Unscheduled()
		} else if h := s.history[i]; h.Ran() {
			if at, ok := nr.Time(); h.LastErr != nil || (ok && !at.After(h.LastRun)) {
				nr = nr.NotBefore(h.LastRun.Add(s.retryDelay))
			}
		}
		s.next[i] = nr

		if s.metrics != nil {
			at, ok := nr.Time()
			s.metrics.NextRun(t.Name(), at, ok)
		}
		if best < 0 || nr.Before(s.next[best]) {
			best = i
		}
	}
	s.publish()

	if best >= 0 && !s.next[best].Scheduled() {
		return -1
	}
	return best
}

func (s *Scheduler) failingNextRuns() bool {
	for _, err := range s.nextErr {
		if err != nil {
			return true
		}
	}
	return false
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	case <-s.wake.Ready():
		s.wake.TryTake()
		s.log.Debug("woken up")
		return true
	}
}

func (s *Scheduler) runTask(ctx context.Context, i int) {
	t := s.tasks[i]
	start := s.clock.Now()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy)
	log := s.log.With("run_id", id.String(), "task", t.Name(), "kind", string(t.Kind()))

	log.Info("task started", logging.Event, "run")
	s.setRunning(i, true)
	began := time.Now()
	err := safeRun(ctx, t)
	elapsed := time.Since(began)
	s.setRunning(i, false)

	h := &s.history[i]
	h.LastRun = start
	h.LastErr = err
	h.Runs++

	if s.metrics != nil {
		s.metrics.TaskFinished(string(t.Kind()), err, elapsed)
	}
	s.record(i, id.String(), err)

	if err != nil {
		log.Error("task failed", logging.Event, "fail", logging.ErrorKey, err, "elapsed", elapsed)
		return
	}
	log.Info("task finished", logging.Event, "done", "elapsed", elapsed)
}

// safeRun turns a panicking task into a failed run.
func safeRun(ctx context.Context, t task.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", t.Name(), r)
		}
	}()
	return t.Run(ctx)
}

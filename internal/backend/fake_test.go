package backend

import (
	"context"
	"sync"
	"time"
)

type reply struct {
	res Result
	dst Result
	err error
}

// fakeRunner answers commands from a script keyed by their rendering.
// Unscripted commands succeed with no output.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	replies map[string][]reply
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: map[string][]reply{}}
}

func (f *fakeRunner) on(key string, r ...reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[key] = append(f.replies[key], r...)
}

func (f *fakeRunner) next(key string) reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	queue := f.replies[key]
	if len(queue) == 0 {
		return reply{}
	}
	r := queue[0]
	if len(queue) > 1 {
		f.replies[key] = queue[1:]
	}
	return r
}

func (f *fakeRunner) Output(_ context.Context, c Command) (Result, error) {
	r := f.next(c.String())
	return r.res, r.err
}

func (f *fakeRunner) Pipe(_ context.Context, src, dst Command) (Result, Result, error) {
	r := f.next(src.String() + " | " + dst.String())
	return r.res, r.dst, r.err
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type observed struct {
	op  string
	err error
}

type fakeObserver struct {
	mu  sync.Mutex
	ops []observed
}

func (o *fakeObserver) ObserveCommand(op string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, observed{op: op, err: err})
}

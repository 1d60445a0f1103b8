// Package backend drives the zfs command line, locally or through ssh.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/snapshot"
)

// Observer is told about every finished backend command.
type Observer interface {
	ObserveCommand(op string, err error, elapsed time.Duration)
}

// Options configures an Adapter. Zero fields take defaults.
type Options struct {
	ZFSPath         string
	SSHPath         string
	CommandTimeout  time.Duration
	TransferTimeout time.Duration
	Recursive       bool
	Namer           snapshot.Namer
	ListRetries     int
	RetryBackoff    time.Duration

	Runner   Runner
	Limiter  *rate.Limiter
	Observer Observer
	Log      logging.Logger
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ZFSPath == "" {
		o.ZFSPath = "zfs"
	}
	if o.SSHPath == "" {
		o.SSHPath = "ssh"
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 2 * time.Minute
	}
	if o.TransferTimeout <= 0 {
		o.TransferTimeout = 12 * time.Hour
	}
	if o.Namer.Prefix == "" {
		o.Namer.Prefix = snapshot.DefaultPrefix
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 100 * time.Millisecond
	}
	if o.Runner == nil {
		o.Runner = ExecRunner{}
	}
	if o.Log == nil {
		o.Log = logging.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Adapter manages the snapshots of one dataset.
//
// An adapter built with New acts on this machine and may replicate to other
// adapters. An adapter built with NewRemote is bound to its location: it only
// acts there and cannot enumerate or replicate onward.
type Adapter struct {
	loc   snapshot.Location
	bound bool
	opts  Options
	log   logging.Logger
}

// New returns an adapter for a dataset on this machine.
func New(dataset string, opts Options) *Adapter {
	return newAdapter(snapshot.Location{Dataset: dataset}, false, opts)
}

// NewRemote returns an adapter bound to loc. A location without a host is
// reached directly.
func NewRemote(loc snapshot.Location, opts Options) *Adapter {
	return newAdapter(loc, true, opts)
}

func newAdapter(loc snapshot.Location, bound bool, opts Options) *Adapter {
	opts = opts.withDefaults()
	return &Adapter{
		loc:   loc,
		bound: bound,
		opts:  opts,
		log:   opts.Log.With(logging.Component, "backend", "location", loc.String()),
	}
}

// Location returns where the adapter acts.
func (a *Adapter) Location() snapshot.Location {
	return a.loc
}

// Bound reports whether the adapter was built for a fixed location.
func (a *Adapter) Bound() bool {
	return a.bound
}

func (a *Adapter) String() string {
	return a.loc.String()
}

// command builds a zfs invocation, wrapped in ssh when the location is remote.
func (a *Adapter) command(args ...string) Command {
	c := Command{Path: a.opts.ZFSPath, Args: args}
	if a.loc.Remote() {
		return wrap(a.opts.SSHPath, a.loc, c)
	}
	return c
}

func (a *Adapter) full(name string) string {
	return a.loc.Dataset + "@" + name
}

func (a *Adapter) throttle(ctx context.Context) error {
	if a.opts.Limiter == nil {
		return nil
	}
	if err := a.opts.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for command slot: %w", err)
	}
	return nil
}

// output runs one command and classifies its outcome.
func (a *Adapter) output(ctx context.Context, op, target string, c Command) ([]byte, error) {
	if err := a.throttle(ctx); err != nil {
		return nil, &CommandError{Op: op, Target: target, Args: c.Args, Err: ErrUnavailable, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.CommandTimeout)
	defer cancel()

	start := time.Now()
	res, err := a.opts.Runner.Output(ctx, c)
	err = classify(op, target, c, res, err, a.loc.Remote())
	a.observe(op, target, err, time.Since(start))
	return res.Stdout, err
}

func (a *Adapter) observe(op, target string, err error, elapsed time.Duration) {
	if a.opts.Observer != nil {
		a.opts.Observer.ObserveCommand(op, err, elapsed)
	}
	if err != nil {
		a.log.Debug("backend command failed", "op", op, "target", target, logging.ErrorKey, err)
		return
	}
	a.log.Debug("backend command done", "op", op, "target", target, "elapsed", elapsed)
}

// classify maps a process outcome to the package sentinels.
func classify(op, target string, c Command, res Result, err error, remote bool) error {
	stderr := strings.TrimSpace(string(res.Stderr))
	switch {
	case err != nil:
		return &CommandError{Op: op, Target: target, Args: c.Args, Stderr: stderr, Err: ErrUnavailable, Cause: unavailableCause(err)}
	case res.ExitCode == 0:
		return nil
	case remote && res.ExitCode == sshExitUnavailable:
		return &CommandError{Op: op, Target: target, Args: c.Args, ExitCode: res.ExitCode, Stderr: stderr, Err: ErrUnavailable}
	default:
		return &CommandError{Op: op, Target: target, Args: c.Args, ExitCode: res.ExitCode, Stderr: stderr, Err: ErrCommandFailed}
	}
}

func unavailableCause(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("timed out: %w", err)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("executable not found: %w", err)
	default:
		return err
	}
}

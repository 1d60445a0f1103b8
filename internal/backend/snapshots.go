package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raoulx24/zam/internal/snapshot"
)

const (
	opList     = "list"
	opSnapshot = "snapshot"
	opDestroy  = "destroy"
	opSend     = "send"
	opRecv     = "recv"
	opBookmark = "bookmark"
)

// Snapshots lists the managed snapshots of the dataset, oldest first.
// A dataset that does not exist yet has no snapshots.
func (a *Adapter) Snapshots(ctx context.Context) ([]snapshot.Snapshot, error) {
	return a.list(ctx, "snapshot", "@")
}

// Bookmarks lists the managed bookmarks of the dataset, oldest first.
func (a *Adapter) Bookmarks(ctx context.Context) ([]snapshot.Snapshot, error) {
	return a.list(ctx, "bookmark", "#")
}

// list runs `zfs list` for one type of dataset child. sep joins the dataset
// and the child name.
func (a *Adapter) list(ctx context.Context, kind, sep string) ([]snapshot.Snapshot, error) {
	ds := a.loc.Dataset
	c := a.command("list", "-H", "-t", kind, "-o", "name", "-s", "name", "-d", "1", ds)

	var out []byte
	err := retry(ctx, a.opts.ListRetries, a.opts.RetryBackoff, "listing "+a.loc.String(), func() error {
		var err error
		out, err = a.output(ctx, opList, a.loc.String(), c)
		return err
	})
	if err != nil {
		var ce *CommandError
		if errors.As(err, &ce) && errors.Is(ce.Err, ErrCommandFailed) && strings.Contains(ce.Stderr, "dataset does not exist") {
			return nil, nil
		}
		return nil, err
	}

	snaps, err := a.parseList(out, ds+sep)
	if err != nil {
		return nil, &CommandError{Op: opList, Target: a.loc.String(), Args: c.Args, Err: ErrCommandFailed, Cause: err}
	}
	return snaps, nil
}

// parseList reads `zfs list -H -o name` output. Every line starts with prefix.
func (a *Adapter) parseList(out []byte, prefix string) ([]snapshot.Snapshot, error) {
	var snaps []snapshot.Snapshot

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "no datasets available" {
			continue
		}
		name, ok := strings.CutPrefix(line, prefix)
		if !ok {
			return nil, fmt.Errorf("unexpected line %q", line)
		}
		if !a.opts.Namer.Managed(name) {
			continue
		}
		s, err := a.opts.Namer.Parse(name)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return snapshot.Sort(snaps), nil
}

// TakeSnapshot creates a snapshot named after the current instant.
func (a *Adapter) TakeSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	s := a.opts.Namer.Snapshot(a.opts.Now())

	args := []string{"snapshot"}
	if a.opts.Recursive {
		args = append(args, "-r")
	}
	args = append(args, a.full(s.Name))

	if _, err := a.output(ctx, opSnapshot, a.loc.String(), a.command(args...)); err != nil {
		return snapshot.Snapshot{}, err
	}
	a.log.Info("snapshot taken", "snapshot", s.String())
	return s, nil
}

// DeleteSnapshots destroys exactly the given snapshots. Every deletion is
// attempted; failures come back together in a *BatchError.
func (a *Adapter) DeleteSnapshots(ctx context.Context, doomed []snapshot.Snapshot) error {
	batch := &BatchError{Op: opDestroy, Target: a.loc.String(), Total: len(doomed)}

	for _, s := range snapshot.Sort(doomed) {
		if !a.opts.Namer.Managed(s.Name) {
			batch.add(s, fmt.Errorf("refusing to destroy unmanaged snapshot: %w", ErrUnsupported))
			continue
		}
		args := []string{"destroy"}
		if a.opts.Recursive {
			args = append(args, "-r")
		}
		args = append(args, a.full(s.Name))

		if _, err := a.output(ctx, opDestroy, a.loc.String(), a.command(args...)); err != nil {
			batch.add(s, err)
			continue
		}
		a.log.Info("snapshot destroyed", "snapshot", s.String())
	}
	return batch.orNil()
}

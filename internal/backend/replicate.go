package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/snapshot"
)

// RemoteSnapshots lists the managed snapshots at dest.
func (a *Adapter) RemoteSnapshots(ctx context.Context, dest snapshot.Destination) ([]snapshot.Snapshot, error) {
	d, err := a.destination("listing remote snapshots", dest)
	if err != nil {
		return nil, err
	}
	return d.Snapshots(ctx)
}

// Replicate sends snaps to dest, oldest first. Each transfer is incremental
// from the newest snapshot at dest, which must still exist here as a snapshot
// or as a bookmark; the first transfer to an empty destination is a full
// stream. A failed transfer does not stop later ones. The newest snapshot
// sent is bookmarked so that pruning it here does not strand dest.
func (a *Adapter) Replicate(ctx context.Context, dest snapshot.Destination, snaps []snapshot.Snapshot) error {
	d, err := a.destination("replicating", dest)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return nil
	}

	local, err := a.Snapshots(ctx)
	if err != nil {
		return err
	}
	remote, err := d.Snapshots(ctx)
	if err != nil {
		return err
	}

	tip, hasTip := snapshot.Latest(remote)
	var from *origin
	if hasTip {
		if from, err = a.originOf(ctx, local, tip); err != nil {
			return err
		}
	}

	onRemote := snapshot.Names(remote)
	batch := &BatchError{Op: "replicate", Target: d.loc.String(), Total: len(snaps)}
	var last *snapshot.Snapshot
	for _, s := range snapshot.Sort(snaps) {
		if _, ok := onRemote[s.Name]; ok {
			continue
		}
		switch {
		case hasTip && !snapshot.Less(tip, s):
			batch.add(s, fmt.Errorf("%s already holds the newer %s: %w", d.loc, tip.Name, ErrNoCommonSnapshot))
			continue
		case hasTip && from == nil:
			batch.add(s, fmt.Errorf("newest snapshot %s at %s is gone here and has no bookmark: %w", tip.Name, d.loc, ErrNoCommonSnapshot))
			continue
		}
		if err := a.transfer(ctx, d, from, s); err != nil {
			batch.add(s, err)
			continue
		}
		sent := s
		tip, hasTip, last = s, true, &sent
		from = &origin{name: s.Name}
		onRemote[s.Name] = struct{}{}
		a.log.Info("snapshot replicated", "snapshot", s.String(), "destination", d.loc.String())
	}

	if last != nil {
		a.bookmark(ctx, *last)
	}
	return batch.orNil()
}

// origin is where an incremental stream starts.
type origin struct {
	name     string
	bookmark bool
}

// originOf finds tip here, first among the snapshots, then among the
// bookmarks. It returns nil when tip is known in neither.
func (a *Adapter) originOf(ctx context.Context, local []snapshot.Snapshot, tip snapshot.Snapshot) (*origin, error) {
	if _, ok := snapshot.Names(local)[tip.Name]; ok {
		return &origin{name: tip.Name}, nil
	}
	marks, err := a.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Names(marks)[tip.Name]; ok {
		return &origin{name: tip.Name, bookmark: true}, nil
	}
	return nil, nil
}

func (a *Adapter) originArg(o origin) string {
	if o.bookmark {
		return a.loc.Dataset + "#" + o.name
	}
	return a.full(o.name)
}

// bookmark keeps s usable as an incremental origin after it is destroyed.
// A failure only costs that protection and is logged.
func (a *Adapter) bookmark(ctx context.Context, s snapshot.Snapshot) {
	c := a.command("bookmark", a.full(s.Name), a.loc.Dataset+"#"+s.Name)
	if _, err := a.output(ctx, opBookmark, a.loc.String(), c); err != nil {
		a.log.Warn("bookmarking replicated snapshot failed", "snapshot", s.String(), logging.ErrorKey, err)
	}
}

func (a *Adapter) destination(op string, dest snapshot.Destination) (*Adapter, error) {
	if a.bound {
		return nil, fmt.Errorf("%s from %s: adapter is bound to its location: %w", op, a.loc, ErrUnsupported)
	}
	d, ok := dest.(*Adapter)
	if !ok || d == nil {
		return nil, fmt.Errorf("%s from %s: destination %T is not a zfs adapter: %w", op, a.loc, dest, ErrUnsupported)
	}
	return d, nil
}

// transfer pipes `zfs send` into `zfs recv` at d. A receiver that rejects
// the stream usually kills the sender with a broken pipe, so its failure is
// the one reported.
func (a *Adapter) transfer(ctx context.Context, d *Adapter, from *origin, s snapshot.Snapshot) error {
	sendArgs := []string{"send"}
	if from != nil {
		sendArgs = append(sendArgs, "-i", a.originArg(*from))
	}
	sendArgs = append(sendArgs, a.full(s.Name))
	src := a.command(sendArgs...)
	dst := d.command("recv", d.full(s.Name))

	target := fmt.Sprintf("%s -> %s", a.loc, d.loc)
	if err := a.throttle(ctx); err != nil {
		return &CommandError{Op: opSend, Target: target, Args: src.Args, Err: ErrUnavailable, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.TransferTimeout)
	defer cancel()

	start := time.Now()
	srcRes, dstRes, err := a.opts.Runner.Pipe(ctx, src, dst)
	switch {
	case err != nil:
		err = classify(opSend, target, src, srcRes, err, a.loc.Remote())
	case dstRes.ExitCode != 0:
		err = classify(opRecv, target, dst, dstRes, nil, d.loc.Remote())
		var ce *CommandError
		if errors.As(err, &ce) && srcRes.ExitCode != 0 {
			ce.Cause = senderFailure(srcRes)
		}
	default:
		err = classify(opSend, target, src, srcRes, nil, a.loc.Remote())
	}
	a.observe(opSend, target, err, time.Since(start))
	return err
}

func senderFailure(res Result) error {
	msg := strings.TrimSpace(string(res.Stderr))
	if msg == "" {
		return fmt.Errorf("sender exited %d", res.ExitCode)
	}
	return fmt.Errorf("sender exited %d: %s", res.ExitCode, msg)
}

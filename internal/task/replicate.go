package task

import (
	"context"
	"fmt"
	"time"

	"github.com/raoulx24/zam/internal/retention"
	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/snapshot"
)

// ReplicationTask keeps a destination supplied with the snapshots its
// retention strategy wants.
type ReplicationTask struct {
	base
	src      Replicator
	dest     Destination
	strategy retention.Strategy
	period   time.Duration
}

// NewReplication returns a replication task running every period.
func NewReplication(name string, src Replicator, dest Destination, strategy retention.Strategy, period time.Duration, opts ...Option) *ReplicationTask {
	return &ReplicationTask{
		base:     newBase(name, KindReplication, opts),
		src:      src,
		dest:     dest,
		strategy: strategy,
		period:   period,
	}
}

// NextRun is due immediately on first start, then once per period after the
// previous attempt, successful or not.
func (t *ReplicationTask) NextRun(_ context.Context, h History) (schedule.NextRun, error) {
	if !h.Ran() {
		return schedule.At(t.clock.Now()), nil
	}
	return schedule.At(h.LastRun.Add(t.period)), nil
}

func (t *ReplicationTask) Run(ctx context.Context) error {
	local, err := t.src.Snapshots(ctx)
	if err != nil {
		return fmt.Errorf("%s: listing local snapshots: %w", t.name, err)
	}
	remote, err := t.src.RemoteSnapshots(ctx, t.dest)
	if err != nil {
		return fmt.Errorf("%s: listing snapshots at %s: %w", t.name, t.dest.Location(), err)
	}

	toSend := Plan(local, remote, t.strategy, t.clock.Now())
	if len(toSend) == 0 {
		t.log.Info("destination up to date", "destination", t.dest.Location().String())
	} else {
		t.log.Info("replicating", "destination", t.dest.Location().String(), "count", len(toSend))
	}

	if err := t.src.Replicate(ctx, t.dest, toSend); err != nil {
		return fmt.Errorf("%s: replicating to %s: %w", t.name, t.dest.Location(), err)
	}
	return nil
}

// Plan returns the local snapshots a destination is missing: those newer than
// everything already there that survive retention evaluated over both sides.
func Plan(local, remote []snapshot.Snapshot, strategy retention.Strategy, now time.Time) []snapshot.Snapshot {
	candidates := local
	if newest, ok := snapshot.Latest(remote); ok {
		candidates = snapshot.NewerThan(local, newest.Created)
	}
	survivors := strategy.Prune(snapshot.Union(candidates, remote), now)
	return snapshot.Difference(survivors, remote)
}

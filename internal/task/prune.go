package task

import (
	"context"
	"fmt"

	"github.com/raoulx24/zam/internal/retention"
	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/snapshot"
)

// PruneTask deletes the snapshots a retention strategy no longer keeps.
type PruneTask struct {
	base
	target   Pruner
	strategy retention.Strategy
}

// NewPrune returns a prune task.
func NewPrune(name string, target Pruner, strategy retention.Strategy, opts ...Option) *PruneTask {
	return &PruneTask{base: newBase(name, KindPrune, opts), target: target, strategy: strategy}
}

// NextRun is now when something is deletable, otherwise the next instant at
// which the strategy could decide differently. With no snapshots at all the
// task waits until another task changes that.
func (t *PruneTask) NextRun(ctx context.Context, _ History) (schedule.NextRun, error) {
	snaps, err := t.target.Snapshots(ctx)
	if err != nil {
		return schedule.Unscheduled(), fmt.Errorf("%s: listing snapshots: %w", t.name, err)
	}
	now := t.clock.Now()
	if len(retention.Doomed(t.strategy, snaps, now)) > 0 {
		return schedule.At(now), nil
	}
	if next, ok := t.strategy.NextChange(snaps, now); ok {
		return schedule.At(next), nil
	}
	return schedule.Unscheduled(), nil
}

// Doomed returns what Run would delete right now.
func (t *PruneTask) Doomed(ctx context.Context) ([]snapshot.Snapshot, error) {
	snaps, err := t.target.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: listing snapshots: %w", t.name, err)
	}
	return retention.Doomed(t.strategy, snaps, t.clock.Now()), nil
}

func (t *PruneTask) Run(ctx context.Context) error {
	doomed, err := t.Doomed(ctx)
	if err != nil {
		return err
	}
	if len(doomed) == 0 {
		t.log.Debug("nothing to prune")
		return nil
	}
	t.log.Info("pruning", "count", len(doomed))
	if err := t.target.DeleteSnapshots(ctx, doomed); err != nil {
		return fmt.Errorf("%s: deleting snapshots: %w", t.name, err)
	}
	return nil
}

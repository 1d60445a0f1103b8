package task

import (
	"context"
	"fmt"

	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/snapshot"
)

// SnapshotTask takes a snapshot whenever the policy says the latest one is due.
type SnapshotTask struct {
	base
	src    Snapshoter
	policy schedule.Policy
}

// NewSnapshot returns a snapshot task.
func NewSnapshot(name string, src Snapshoter, policy schedule.Policy, opts ...Option) *SnapshotTask {
	return &SnapshotTask{base: newBase(name, KindSnapshot, opts), src: src, policy: policy}
}

// NextRun follows the latest existing snapshot, so a failed attempt leaves the
// schedule where the last success put it. Without snapshots the task is due now.
func (t *SnapshotTask) NextRun(ctx context.Context, _ History) (schedule.NextRun, error) {
	snaps, err := t.src.Snapshots(ctx)
	if err != nil {
		return schedule.Unscheduled(), fmt.Errorf("%s: listing snapshots: %w", t.name, err)
	}
	latest, ok := snapshot.Latest(snaps)
	if !ok {
		return schedule.At(t.clock.Now()), nil
	}
	return schedule.At(t.policy.Next(latest.Created)), nil
}

func (t *SnapshotTask) Run(ctx context.Context) error {
	s, err := t.src.TakeSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("%s: taking snapshot: %w", t.name, err)
	}
	t.log.Info("snapshot created", "snapshot", s.String(), "policy", t.policy.String())
	return nil
}

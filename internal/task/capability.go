package task

import (
	"context"

	"github.com/raoulx24/zam/internal/snapshot"
)

// Destination is a replication target as seen from the source.
type Destination = snapshot.Destination

// Snapshoter enumerates and creates snapshots.
type Snapshoter interface {
	Snapshots(ctx context.Context) ([]snapshot.Snapshot, error)
	TakeSnapshot(ctx context.Context) (snapshot.Snapshot, error)
}

// Replicator enumerates a destination and transfers snapshots to it.
// Replicate with no snapshots succeeds without doing anything.
type Replicator interface {
	Snapshots(ctx context.Context) ([]snapshot.Snapshot, error)
	RemoteSnapshots(ctx context.Context, dest Destination) ([]snapshot.Snapshot, error)
	Replicate(ctx context.Context, dest Destination, snaps []snapshot.Snapshot) error
}

// Pruner enumerates and deletes snapshots.
type Pruner interface {
	Snapshots(ctx context.Context) ([]snapshot.Snapshot, error)
	DeleteSnapshots(ctx context.Context, doomed []snapshot.Snapshot) error
}

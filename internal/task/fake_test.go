package task

import (
	"context"
	"sync"

	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/snapshot"
)

type fakeDest struct {
	loc   snapshot.Location
	snaps []snapshot.Snapshot
}

func (d *fakeDest) Location() snapshot.Location { return d.loc }

// fakeBackend keeps snapshots in memory and records what was asked of it.
type fakeBackend struct {
	mu    sync.Mutex
	clock schedule.Clock
	snaps []snapshot.Snapshot

	listErr    error
	remoteErr  error
	takeErr    error
	deleteErr  error
	replicated [][]snapshot.Snapshot
	deleted    [][]snapshot.Snapshot
}

func (f *fakeBackend) Snapshots(context.Context) ([]snapshot.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return snapshot.Sort(f.snaps), nil
}

func (f *fakeBackend) TakeSnapshot(context.Context) (snapshot.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takeErr != nil {
		return snapshot.Snapshot{}, f.takeErr
	}
	s := snapshot.DefaultNamer().Snapshot(f.clock.Now())
	f.snaps = append(f.snaps, s)
	return s, nil
}

func (f *fakeBackend) DeleteSnapshots(_ context.Context, doomed []snapshot.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, doomed)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.snaps = snapshot.Difference(f.snaps, doomed)
	return nil
}

func (f *fakeBackend) RemoteSnapshots(_ context.Context, dest Destination) ([]snapshot.Snapshot, error) {
	if f.remoteErr != nil {
		return nil, f.remoteErr
	}
	return snapshot.Sort(dest.(*fakeDest).snaps), nil
}

func (f *fakeBackend) Replicate(_ context.Context, dest Destination, snaps []snapshot.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replicated = append(f.replicated, snaps)
	d := dest.(*fakeDest)
	d.snaps = snapshot.Union(d.snaps, snaps)
	return nil
}

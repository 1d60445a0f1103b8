package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/zam/internal/backend"
	"github.com/raoulx24/zam/internal/retention"
	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/snapshot"
)

const day = 24 * time.Hour

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func snapAt(at time.Time) snapshot.Snapshot {
	return snapshot.DefaultNamer().Snapshot(at)
}

func hourly(end time.Time, n int) []snapshot.Snapshot {
	out := make([]snapshot.Snapshot, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, snapAt(end.Add(-time.Duration(i)*time.Hour)))
	}
	return out
}

func at(t *testing.T, n schedule.NextRun) time.Time {
	t.Helper()
	ts, ok := n.Time()
	require.True(t, ok, "expected a scheduled run")
	return ts
}

func TestSnapshotTaskDueNowWithoutSnapshots(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	fb := &fakeBackend{clock: clock}
	st := NewSnapshot("snapshot tank", fb, schedule.Every(time.Hour), WithClock(clock))

	next, err := st.NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.Equal(t, t0, at(t, next))
	assert.Equal(t, KindSnapshot, st.Kind())
	assert.Equal(t, "snapshot tank", st.Name())
}

func TestSnapshotTaskFollowsLatest(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	fb := &fakeBackend{clock: clock, snaps: hourly(t0.Add(-10*time.Minute), 3)}
	st := NewSnapshot("s", fb, schedule.Every(time.Hour), WithClock(clock))

	next, err := st.NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(50*time.Minute), at(t, next))

	clock.Set(t0.Add(50 * time.Minute))
	require.NoError(t, st.Run(context.Background()))
	next, err = st.NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(110*time.Minute), at(t, next))
}

func TestSnapshotTaskFailureKeepsSchedule(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	latest := snapAt(t0.Add(-2 * time.Hour))
	cmdErr := &backend.CommandError{Op: "snapshot", Target: "local:tank", ExitCode: 1, Err: backend.ErrCommandFailed}
	fb := &fakeBackend{clock: clock, snaps: []snapshot.Snapshot{latest}, takeErr: cmdErr}
	st := NewSnapshot("s", fb, schedule.Every(time.Hour), WithClock(clock))

	err := st.Run(context.Background())
	require.ErrorIs(t, err, backend.ErrCommandFailed)

	next, err := st.NextRun(context.Background(), History{LastRun: t0, LastErr: err, Runs: 1})
	require.NoError(t, err)
	assert.Equal(t, latest.Created.Add(time.Hour), at(t, next), "anchored on the last successful snapshot")
}

func TestSnapshotTaskCron(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	fb := &fakeBackend{clock: clock, snaps: []snapshot.Snapshot{snapAt(t0.Add(-20 * time.Minute))}}
	policy, err := schedule.Cron("0 */6 * * *")
	require.NoError(t, err)

	next, err := NewSnapshot("s", fb, policy, WithClock(clock)).NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), at(t, next))
}

func TestSnapshotTaskListingError(t *testing.T) {
	fb := &fakeBackend{clock: schedule.SystemClock{}, listErr: backend.ErrUnavailable}
	next, err := NewSnapshot("s", fb, schedule.Every(time.Hour)).NextRun(context.Background(), History{})
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.False(t, next.Scheduled())
}

func TestPlanToEmptyRemoteSendsAllSurvivors(t *testing.T) {
	local := hourly(t0, 5)
	st := retention.New([]retention.Bucket{{Period: time.Hour, MaxAge: day}})

	assert.Equal(t, local, Plan(local, nil, st, t0.Add(time.Minute)))
}

func TestPlanInSyncSendsNothing(t *testing.T) {
	local := hourly(t0, 5)
	st := retention.New([]retention.Bucket{{Period: time.Hour, MaxAge: day}})

	assert.Empty(t, Plan(local, local, st, t0))
}

func TestPlanOnlySendsNewerThanRemote(t *testing.T) {
	local := hourly(t0, 6)
	remote := []snapshot.Snapshot{local[3]}
	st := retention.New([]retention.Bucket{{Period: time.Hour}})

	got := Plan(local, remote, st, t0.Add(time.Minute))
	assert.Equal(t, local[4:], got, "older snapshots missing remotely are not back-filled")
}

func TestPlanAppliesRetention(t *testing.T) {
	local := hourly(t0, 48)
	st := retention.New([]retention.Bucket{{Period: day}})

	got := Plan(local, nil, st, t0)
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Contains(t, local, s)
	}
}

func TestReplicationTaskSchedule(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	rt := NewReplication("r", &fakeBackend{clock: clock}, &fakeDest{}, retention.New(nil), 6*time.Hour, WithClock(clock))

	next, err := rt.NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.Equal(t, t0, at(t, next))

	last := t0.Add(-time.Hour)
	next, err = rt.NextRun(context.Background(), History{LastRun: last, Runs: 1, LastErr: errors.New("host down")})
	require.NoError(t, err)
	assert.Equal(t, last.Add(6*time.Hour), at(t, next))
}

func TestReplicationTaskRun(t *testing.T) {
	clock := schedule.NewManualClock(t0.Add(time.Minute))
	fb := &fakeBackend{clock: clock, snaps: hourly(t0, 5)}
	dest := &fakeDest{loc: snapshot.Location{Host: "backup", Dataset: "pool/data"}}
	st := retention.New([]retention.Bucket{{Period: time.Hour, MaxAge: day}})
	rt := NewReplication("r", fb, dest, st, time.Hour, WithClock(clock))

	require.NoError(t, rt.Run(context.Background()))
	require.Len(t, fb.replicated, 1)
	assert.Equal(t, fb.snaps, fb.replicated[0])

	// nothing new: still asks the backend, with an empty set
	require.NoError(t, rt.Run(context.Background()))
	require.Len(t, fb.replicated, 2)
	assert.Empty(t, fb.replicated[1])
}

func TestReplicationTaskRemoteUnavailable(t *testing.T) {
	fb := &fakeBackend{clock: schedule.SystemClock{}, remoteErr: fmt.Errorf("ssh: %w", backend.ErrUnavailable)}
	rt := NewReplication("r", fb, &fakeDest{}, retention.New(nil), time.Hour)

	err := rt.Run(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Empty(t, fb.replicated)
}

func TestPruneTaskDueWhenSomethingIsDeletable(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	fb := &fakeBackend{clock: clock, snaps: hourly(t0, 30)}
	pt := NewPrune("p", fb, retention.New([]retention.Bucket{{Period: time.Hour, MaxAge: day}}), WithClock(clock))

	next, err := pt.NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.Equal(t, t0, at(t, next))

	doomed, err := pt.Doomed(context.Background())
	require.NoError(t, err)
	require.NoError(t, pt.Run(context.Background()))
	require.Len(t, fb.deleted, 1)
	assert.Equal(t, doomed, fb.deleted[0])
	assert.Len(t, fb.snaps, 24)
}

func TestPruneTaskWaitsForNextChange(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	fb := &fakeBackend{clock: clock, snaps: hourly(t0, 3)}
	pt := NewPrune("p", fb, retention.New([]retention.Bucket{{Period: time.Hour, MaxAge: 3 * time.Hour}}), WithClock(clock))

	next, err := pt.NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.True(t, at(t, next).After(t0), "never a past instant")

	require.NoError(t, pt.Run(context.Background()))
	assert.Empty(t, fb.deleted, "nothing deletable, nothing deleted")
}

func TestPruneTaskUnscheduledWithoutSnapshots(t *testing.T) {
	fb := &fakeBackend{clock: schedule.SystemClock{}}
	next, err := NewPrune("p", fb, retention.New([]retention.Bucket{{Period: time.Hour}})).NextRun(context.Background(), History{})
	require.NoError(t, err)
	assert.False(t, next.Scheduled())
}

func TestPruneTaskReportsPartialFailure(t *testing.T) {
	clock := schedule.NewManualClock(t0)
	batch := &backend.BatchError{Op: "destroy", Target: "local:tank", Total: 2, Failures: []backend.Failure{{Err: backend.ErrCommandFailed}}}
	fb := &fakeBackend{clock: clock, snaps: hourly(t0, 3), deleteErr: batch}
	pt := NewPrune("p", fb, retention.New([]retention.Bucket{{Period: time.Hour, MaxAge: time.Hour}}), WithClock(clock))

	err := pt.Run(context.Background())
	assert.ErrorIs(t, err, backend.ErrPartialBatch)
}

package retention

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/zam/internal/snapshot"
)

const day = 24 * time.Hour

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func every(start time.Time, step time.Duration, n int) []snapshot.Snapshot {
	namer := snapshot.DefaultNamer()
	out := make([]snapshot.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, namer.Snapshot(start.Add(time.Duration(i)*step)))
	}
	return out
}

func TestDailyBucketOverTenDaysOfSixHourly(t *testing.T) {
	snaps := every(t0, 6*time.Hour, 40)
	last := snaps[len(snaps)-1]
	now := last.Created.Add(time.Hour)

	kept := New([]Bucket{{Period: day, MaxAge: 7 * day}}).Prune(snaps, now)

	require.Len(t, kept, 7)
	slots := map[int64]bool{}
	for _, s := range kept {
		age := now.Sub(s.Created)
		assert.LessOrEqual(t, age, 7*day, "kept %s beyond max age", s)
		k := int64(age / day)
		assert.False(t, slots[k], "two snapshots kept for day %d", k)
		slots[k] = true
	}

	assert.Contains(t, kept, last, "newest snapshot of the most recent day is kept")
	// the oldest day keeps the snapshot closest to the max age boundary
	assert.Contains(t, kept, snapshot.DefaultNamer().Snapshot(now.Add(-163*time.Hour)))
}

func TestWindowIsInclusiveAtMaxAge(t *testing.T) {
	now := t0.Add(30 * day)
	edge := snapshot.New("edge", now.Add(-2*day))
	beyond := snapshot.New("beyond", now.Add(-2*day-time.Nanosecond))
	b := New([]Bucket{{Period: day, MaxAge: 2 * day}})

	kept := b.Prune([]snapshot.Snapshot{edge, beyond}, now)
	assert.Equal(t, []snapshot.Snapshot{edge}, kept)
}

func TestOldestIntervalKeepsOldest(t *testing.T) {
	now := t0.Add(30 * day)
	a := snapshot.New("a", now.Add(-47*time.Hour))
	b := snapshot.New("b", now.Add(-30*time.Hour))
	c := snapshot.New("c", now.Add(-20*time.Hour))
	d := snapshot.New("d", now.Add(-time.Hour))

	kept := New([]Bucket{{Period: day, MaxAge: 2 * day}}).Prune([]snapshot.Snapshot{a, b, c, d}, now)
	assert.Equal(t, []snapshot.Snapshot{a, d}, kept)
}

func TestSingleIntervalWindowKeepsNewest(t *testing.T) {
	now := t0.Add(30 * day)
	a := snapshot.New("a", now.Add(-3*time.Hour))
	b := snapshot.New("b", now.Add(-2*time.Hour))

	kept := New([]Bucket{{Period: day, MaxAge: 12 * time.Hour}}).Prune([]snapshot.Snapshot{a, b}, now)
	assert.Equal(t, []snapshot.Snapshot{b}, kept)
}

func TestUnboundedBucketKeepsOnePerPeriodForever(t *testing.T) {
	snaps := every(t0, 12*time.Hour, 20)
	now := snaps[len(snaps)-1].Created

	kept := New([]Bucket{{Period: day}}).Prune(snaps, now)
	assert.Len(t, kept, 10)
	// no max age means the oldest day is still covered
	assert.Contains(t, kept, snaps[1])
	assert.NotContains(t, kept, snaps[0])
}

func TestNoBucketsKeepsNothing(t *testing.T) {
	snaps := every(t0, time.Hour, 5)
	assert.Empty(t, New(nil).Prune(snaps, t0.Add(day)))
}

func TestFutureSnapshotsAreKept(t *testing.T) {
	now := t0
	future := snapshot.New("future", now.Add(time.Hour))
	kept := New(nil).Prune([]snapshot.Snapshot{future}, now)
	assert.Equal(t, []snapshot.Snapshot{future}, kept)
}

func TestTiesAreDeterministic(t *testing.T) {
	now := t0.Add(day)
	a := snapshot.New("ZAM-a", t0.Add(time.Hour))
	b := snapshot.New("ZAM-b", t0.Add(time.Hour))
	st := New([]Bucket{{Period: day}})

	want := st.Prune([]snapshot.Snapshot{a, b}, now)
	require.Equal(t, []snapshot.Snapshot{b}, want)
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, st.Prune([]snapshot.Snapshot{b, a}, now))
	}
}

func TestBucketsAreUnioned(t *testing.T) {
	snaps := every(t0, time.Hour, 72)
	now := snaps[len(snaps)-1].Created

	hourly := New([]Bucket{{Period: time.Hour, MaxAge: 6 * time.Hour}}).Prune(snaps, now)
	daily := New([]Bucket{{Period: day, MaxAge: 3 * day}}).Prune(snaps, now)
	both := New([]Bucket{
		{Period: time.Hour, MaxAge: 6 * time.Hour},
		{Period: day, MaxAge: 3 * day},
	}).Prune(snaps, now)

	assert.Equal(t, snapshot.Union(hourly, daily), both)
}

func TestPruneIsSubsetAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bucketSets := [][]Bucket{
		nil,
		{{Period: time.Hour, MaxAge: day}},
		{{Period: time.Hour, MaxAge: day}, {Period: day, MaxAge: 30 * day}, {Period: 30 * day}},
		{{Period: 7 * time.Hour, MaxAge: 50 * time.Hour}, {Period: 3 * day}},
	}

	for i := 0; i < 50; i++ {
		n := rng.Intn(200)
		snaps := make([]snapshot.Snapshot, 0, n)
		for j := 0; j < n; j++ {
			at := t0.Add(time.Duration(rng.Int63n(int64(60 * day))))
			snaps = append(snaps, snapshot.New(fmt.Sprintf("s%03d", j), at))
		}
		now := t0.Add(time.Duration(rng.Int63n(int64(70 * day))))

		for _, buckets := range bucketSets {
			st := New(buckets)
			kept := st.Prune(snaps, now)
			assert.Empty(t, snapshot.Difference(kept, snaps), "kept must be a subset")
			assert.Equal(t, kept, st.Prune(kept, now), "prune must be idempotent")
		}
	}
}

func TestNextChange(t *testing.T) {
	now := t0.Add(10 * day)
	st := New([]Bucket{{Period: day, MaxAge: 3 * day}})

	_, ok := st.NextChange(nil, now)
	assert.False(t, ok)

	s := snapshot.New("s", now.Add(-30*time.Hour))
	next, ok := st.NextChange([]snapshot.Snapshot{s}, now)
	require.True(t, ok)
	assert.Equal(t, s.Created.Add(2*day), next)
	assert.True(t, next.After(now))

	old := snapshot.New("old", now.Add(-3*day+time.Hour))
	next, ok = st.NextChange([]snapshot.Snapshot{old}, now)
	require.True(t, ok)
	assert.Equal(t, old.Created.Add(3*day+time.Nanosecond), next)

	gone := snapshot.New("gone", now.Add(-4*day))
	_, ok = st.NextChange([]snapshot.Snapshot{gone}, now)
	assert.False(t, ok)
}

func TestNextChangeIsWhenPruneFirstDiffers(t *testing.T) {
	snaps := every(t0, 6*time.Hour, 40)
	now := snaps[len(snaps)-1].Created.Add(time.Hour)
	st := New([]Bucket{{Period: day, MaxAge: 7 * day}})

	kept := st.Prune(snaps, now)
	next, ok := st.NextChange(kept, now)
	require.True(t, ok)
	require.True(t, next.After(now))

	// nothing changes strictly before the next event
	assert.Equal(t, kept, st.Prune(kept, next.Add(-time.Nanosecond)))
}

func TestDoomed(t *testing.T) {
	snaps := every(t0, time.Hour, 3)
	doomed := Doomed(New([]Bucket{{Period: day}}), snaps, t0.Add(3*time.Hour))
	assert.Equal(t, snaps[:2], doomed)
}

// Package retention decides which snapshots are worth keeping.
package retention

import (
	"fmt"
	"time"

	"github.com/raoulx24/zam/internal/snapshot"
)

// Strategy selects the snapshots to keep at a given instant.
type Strategy interface {
	// Prune returns the subset of snaps to keep.
	Prune(snaps []snapshot.Snapshot, now time.Time) []snapshot.Snapshot
	// NextChange returns the earliest instant after now at which Prune
	// may decide differently for the same set.
	NextChange(snaps []snapshot.Snapshot, now time.Time) (time.Time, bool)
}

// Bucket keeps about one snapshot per Period for up to MaxAge.
// A zero MaxAge keeps one snapshot per Period forever.
type Bucket struct {
	Period time.Duration
	MaxAge time.Duration
}

func (b Bucket) bounded() bool {
	return b.MaxAge > 0
}

// oldest returns the index of the last sub-interval of a bounded window.
func (b Bucket) oldest() int64 {
	return int64((b.MaxAge - 1) / b.Period)
}

func (b Bucket) String() string {
	if !b.bounded() {
		return fmt.Sprintf("bucket(every %s, forever)", b.Period)
	}
	return fmt.Sprintf("bucket(every %s, for %s)", b.Period, b.MaxAge)
}

// slot returns the sub-interval index of s, or false when s is outside the window.
func (b Bucket) slot(s snapshot.Snapshot, now time.Time) (int64, bool) {
	if s.Created.After(now) {
		return 0, false
	}
	age := now.Sub(s.Created)
	if b.bounded() && age > b.MaxAge {
		return 0, false
	}
	k := int64(age / b.Period)
	if b.bounded() && k > b.oldest() {
		// age == MaxAge on an exact multiple of Period
		k = b.oldest()
	}
	return k, true
}

// keep picks at most one snapshot per sub-interval of the window.
func (b Bucket) keep(snaps []snapshot.Snapshot, now time.Time) []snapshot.Snapshot {
	if b.Period <= 0 {
		return nil
	}
	picks := make(map[int64]snapshot.Snapshot)
	for _, s := range snaps {
		k, ok := b.slot(s, now)
		if !ok {
			continue
		}
		cur, seen := picks[k]
		keepOldest := b.bounded() && k == b.oldest() && k > 0
		switch {
		case !seen:
			picks[k] = s
		case keepOldest && snapshot.Less(s, cur):
			picks[k] = s
		case !keepOldest && snapshot.Less(cur, s):
			picks[k] = s
		}
	}
	out := make([]snapshot.Snapshot, 0, len(picks))
	for _, s := range picks {
		out = append(out, s)
	}
	return out
}

// next returns the earliest instant after now at which s changes sub-interval
// or leaves the window of b.
func (b Bucket) next(s snapshot.Snapshot, now time.Time) (time.Time, bool) {
	if b.Period <= 0 {
		return time.Time{}, false
	}
	if s.Created.After(now) {
		return s.Created, true
	}
	k, ok := b.slot(s, now)
	if !ok {
		return time.Time{}, false
	}
	if b.bounded() && k == b.oldest() {
		return s.Created.Add(b.MaxAge + time.Nanosecond), true
	}
	return s.Created.Add(time.Duration(k+1) * b.Period), true
}

// Bucketed is the union of independent buckets.
// With no buckets nothing is kept.
type Bucketed struct {
	buckets []Bucket
}

// New returns a bucketed strategy over a copy of buckets.
func New(buckets []Bucket) *Bucketed {
	return &Bucketed{buckets: append([]Bucket(nil), buckets...)}
}

// Buckets returns the configured buckets.
func (r *Bucketed) Buckets() []Bucket {
	return append([]Bucket(nil), r.buckets...)
}

// Prune returns the snapshots kept by at least one bucket, oldest first.
// Snapshots dated after now are always kept.
func (r *Bucketed) Prune(snaps []snapshot.Snapshot, now time.Time) []snapshot.Snapshot {
	kept := make([]snapshot.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Created.After(now) {
			kept = append(kept, s)
		}
	}
	for _, b := range r.buckets {
		kept = snapshot.Union(kept, b.keep(snaps, now))
	}
	return snapshot.Sort(kept)
}

// NextChange returns the earliest sub-interval crossing or window exit
// among snaps, strictly after now.
func (r *Bucketed) NextChange(snaps []snapshot.Snapshot, now time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, b := range r.buckets {
		for _, s := range snaps {
			t, ok := b.next(s, now)
			if !ok {
				continue
			}
			if !found || t.Before(best) {
				best, found = t, true
			}
		}
	}
	return best, found
}

// Doomed returns the members of snaps that the strategy does not keep.
func Doomed(st Strategy, snaps []snapshot.Snapshot, now time.Time) []snapshot.Snapshot {
	return snapshot.Difference(snaps, st.Prune(snaps, now))
}

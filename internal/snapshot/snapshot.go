// Package snapshot holds the snapshot entity, its ordering and set helpers.
package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Snapshot represents a single ZFS snapshot of a managed dataset.
// Name is the part after '@' and identifies the snapshot uniquely.
type Snapshot struct {
	Name    string
	Created time.Time
}

// New returns a snapshot with its creation time normalised to UTC.
func New(name string, created time.Time) Snapshot {
	return Snapshot{Name: name, Created: created.UTC()}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("snapshot(%s, %s)", s.Name, s.Created.UTC().Format(time.RFC3339))
}

// Compare orders by creation time, then by name.
func Compare(a, b Snapshot) int {
	if c := a.Created.Compare(b.Created); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// Less reports whether a sorts before b.
func Less(a, b Snapshot) bool {
	return Compare(a, b) < 0
}

// Sort returns a sorted copy, oldest first.
func Sort(snaps []Snapshot) []Snapshot {
	out := append([]Snapshot(nil), snaps...)
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Latest returns the greatest snapshot in the set.
func Latest(snaps []Snapshot) (Snapshot, bool) {
	if len(snaps) == 0 {
		return Snapshot{}, false
	}
	best := snaps[0]
	for _, s := range snaps[1:] {
		if Less(best, s) {
			best = s
		}
	}
	return best, true
}

// Earliest returns the smallest snapshot in the set.
func Earliest(snaps []Snapshot) (Snapshot, bool) {
	if len(snaps) == 0 {
		return Snapshot{}, false
	}
	best := snaps[0]
	for _, s := range snaps[1:] {
		if Less(s, best) {
			best = s
		}
	}
	return best, true
}

// Names indexes a set by snapshot name.
func Names(snaps []Snapshot) map[string]struct{} {
	m := make(map[string]struct{}, len(snaps))
	for _, s := range snaps {
		m[s.Name] = struct{}{}
	}
	return m
}

// Union returns the sorted union of a and b, deduplicated by name.
func Union(a, b []Snapshot) []Snapshot {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]Snapshot, 0, len(a)+len(b))
	for _, set := range [][]Snapshot{a, b} {
		for _, s := range set {
			if _, ok := seen[s.Name]; ok {
				continue
			}
			seen[s.Name] = struct{}{}
			out = append(out, s)
		}
	}
	return Sort(out)
}

// Difference returns the sorted members of a whose name is not in b.
func Difference(a, b []Snapshot) []Snapshot {
	drop := Names(b)
	out := make([]Snapshot, 0, len(a))
	for _, s := range a {
		if _, ok := drop[s.Name]; !ok {
			out = append(out, s)
		}
	}
	return Sort(out)
}

// NewerThan returns the members of snaps created strictly after t.
func NewerThan(snaps []Snapshot, t time.Time) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Created.After(t) {
			out = append(out, s)
		}
	}
	return Sort(out)
}

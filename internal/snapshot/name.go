package snapshot

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPrefix = "ZAM-"
	DefaultLayout = "2006-01-02T15:04:05"
)

// Namer maps creation instants to snapshot names and back.
// Names without Prefix belong to someone else and are never managed.
type Namer struct {
	Prefix string
	Layout string
}

// DefaultNamer returns the naming scheme used when none is configured.
func DefaultNamer() Namer {
	return Namer{Prefix: DefaultPrefix, Layout: DefaultLayout}
}

func (n Namer) layout() string {
	if n.Layout == "" {
		return DefaultLayout
	}
	return n.Layout
}

// Format returns the snapshot name for an instant, always rendered in UTC.
func (n Namer) Format(t time.Time) string {
	return n.Prefix + t.UTC().Format(n.layout())
}

// Snapshot builds the snapshot taken at t.
func (n Namer) Snapshot(t time.Time) Snapshot {
	// the name only carries the layout's precision
	created, _ := time.ParseInLocation(n.layout(), t.UTC().Format(n.layout()), time.UTC)
	return Snapshot{Name: n.Format(t), Created: created}
}

// Managed reports whether name carries the prefix.
func (n Namer) Managed(name string) bool {
	return strings.HasPrefix(name, n.Prefix)
}

// Parse turns a managed snapshot name into a Snapshot.
func (n Namer) Parse(name string) (Snapshot, error) {
	if !n.Managed(name) {
		return Snapshot{}, fmt.Errorf("snapshot %q: missing prefix %q", name, n.Prefix)
	}
	t, err := time.ParseInLocation(n.layout(), strings.TrimPrefix(name, n.Prefix), time.UTC)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %q: parsing time: %w", name, err)
	}
	return Snapshot{Name: name, Created: t}, nil
}

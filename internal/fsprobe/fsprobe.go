// Package fsprobe checks whether fsnotify works for a directory. Network and
// container filesystems often accept a watch and then never report anything.
package fsprobe

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Result reports whether fsnotify is usable and why not.
type Result struct {
	FsnotifySupported bool
	Reason            string
}

func unsupported(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Probe replaces a hidden file in dir the way editors save a config file
// and reports whether fsnotify saw it happen.
func Probe(dir string) Result {
	return probe(dir, 200*time.Millisecond)
}

func probe(dir string, wait time.Duration) Result {
	if st, err := os.Stat(dir); err != nil {
		return unsupported("stat failed: %v", err)
	} else if !st.IsDir() {
		return unsupported("not a directory")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return unsupported("fsnotify unavailable: %v", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return unsupported("cannot watch directory: %v", err)
	}

	f, err := os.CreateTemp(dir, ".zam-fsprobe-*")
	if err != nil {
		return unsupported("cannot create probe file: %v", err)
	}
	staged := f.Name()
	f.Close()
	saved := staged + ".yaml"
	defer os.Remove(staged)
	defer os.Remove(saved)
	if err := os.Rename(staged, saved); err != nil {
		return unsupported("rename failed: %v", err)
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return unsupported("event stream closed")
			}
			if base := filepath.Base(ev.Name); base == filepath.Base(saved) || base == filepath.Base(staged) {
				return Result{FsnotifySupported: true}
			}
		case <-deadline.C:
			return unsupported("no event within %s", wait)
		}
	}
}

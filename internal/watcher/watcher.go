// Package watcher monitors the configuration file and requests reloads.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/raoulx24/zam/internal/config"
	"github.com/raoulx24/zam/internal/fsprobe"
	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/mailbox"
)

// Event asks for the configuration to be read again.
type Event struct {
	Path    string
	ModTime time.Time
	Reason  string
}

// Watcher observes one file and posts an Event when its content changes.
type Watcher struct {
	mu sync.RWMutex

	path      string
	interval  time.Duration
	mode      string
	debounce  time.Duration
	stability time.Duration

	log logging.Logger

	lastModTime time.Time
	lastSize    int64

	mb *mailbox.Mailbox[Event]
}

// New creates a watcher for the config file at path.
func New(path string, cfg config.ReloadConfig, log logging.Logger, mb *mailbox.Mailbox[Event]) *Watcher {
	w := &Watcher{
		path:      path,
		interval:  cfg.PollInterval.Std(),
		mode:      cfg.Mode,
		debounce:  cfg.Debounce.Std(),
		stability: cfg.Debounce.Std() / 2,
		log:       log.With(logging.Component, "watcher", "path", path),
		mb:        mb,
	}
	if info, err := os.Stat(path); err == nil {
		w.lastModTime = info.ModTime()
		w.lastSize = info.Size()
	}
	return w
}

// Start watches the file until ctx is done. In auto mode fsnotify is used
// when a probe of the directory shows it delivers events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.RLock()
	mode := w.mode
	w.mu.RUnlock()

	switch mode {
	case "fsnotify":
		return w.watchEvents(ctx)
	case "poll":
		return w.poll(ctx)
	case "auto":
		if res := fsprobe.Probe(filepath.Dir(w.path)); !res.FsnotifySupported {
			w.log.Warn("fsnotify unusable, polling instead", "reason", res.Reason)
			return w.poll(ctx)
		}
		return w.watchEvents(ctx)
	default:
		return fmt.Errorf("unknown reload mode %q", mode)
	}
}

package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchEvents follows fsnotify events for the config file. The parent
// directory is watched so that editors replacing the file by rename are
// still seen. A burst of events is checked once, after debounce of quiet.
func (w *Watcher) watchEvents(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting fsnotify: %w", err)
	}
	defer fw.Close()

	dir, name := filepath.Split(w.path)
	if err := fw.Add(filepath.Clean(dir)); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.log.Info("watching config file", "mode", "fsnotify")

	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("fsnotify event stream closed")
			}
			if filepath.Base(ev.Name) != name || ev.Op == fsnotify.Chmod {
				continue
			}
			w.log.Debug("config file event", "op", ev.Op.String())
			settled = time.After(w.currentDebounce())

		case <-settled:
			settled = nil
			w.detect()

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fsnotify error stream closed")
			}
			w.log.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) currentDebounce() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.debounce
}

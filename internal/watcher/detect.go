package watcher

import (
	"os"
)

// detect posts a reload event if the file changed since the last one.
func (w *Watcher) detect() {
	w.mu.RLock()
	path := w.path
	lastMod := w.lastModTime
	lastSize := w.lastSize
	w.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		w.log.Debug("config file not readable", "error", err)
		return
	}

	if info.ModTime().Equal(lastMod) && info.Size() == lastSize {
		return
	}
	if !w.isFileStable() {
		w.log.Debug("config file still being written")
		return
	}

	w.mu.Lock()
	w.lastModTime = info.ModTime()
	w.lastSize = info.Size()
	w.mu.Unlock()

	w.log.Info("config file changed", "event", "change")
	w.mb.Put(Event{Path: path, ModTime: info.ModTime(), Reason: "file changed"})
}

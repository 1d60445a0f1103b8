package watcher

import (
	"os"
	"time"
)

// isFileStable reports whether the file size holds still for the stability window.
func (w *Watcher) isFileStable() bool {
	w.mu.RLock()
	path := w.path
	stability := w.stability
	w.mu.RUnlock()

	if stability <= 0 {
		return true
	}

	info1, err := os.Stat(path)
	if err != nil {
		return false
	}

	time.Sleep(stability)

	info2, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info1.Size() == info2.Size() && info1.ModTime().Equal(info2.ModTime())
}

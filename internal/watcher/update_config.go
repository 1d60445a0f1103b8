package watcher

import (
	"github.com/raoulx24/zam/internal/config"
)

// UpdateConfig applies new reload settings from the next check on. The mode
// only changes when the watcher is started again.
func (w *Watcher) UpdateConfig(cfg config.ReloadConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.interval = cfg.PollInterval.Std()
	w.debounce = cfg.Debounce.Std()
	w.stability = cfg.Debounce.Std() / 2
}

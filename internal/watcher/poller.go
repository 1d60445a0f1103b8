package watcher

import (
	"context"
	"time"
)

// poll checks the config file every interval. The interval is read again
// after each check, so UpdateConfig applies from the next one.
func (w *Watcher) poll(ctx context.Context) error {
	every := w.currentInterval()
	w.log.Info("watching config file", "mode", "poll", "interval", every)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(every):
			w.detect()
			every = w.currentInterval()
		}
	}
}

func (w *Watcher) currentInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.interval
}

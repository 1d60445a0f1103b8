package cli

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raoulx24/zam/internal/buildinfo"
	"github.com/raoulx24/zam/internal/config"
	"github.com/raoulx24/zam/internal/httpapi"
	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/mailbox"
	"github.com/raoulx24/zam/internal/metrics"
	"github.com/raoulx24/zam/internal/scheduler"
	"github.com/raoulx24/zam/internal/watcher"
)

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
}

// supervisor owns the running scheduler and replaces it on reload.
type supervisor struct {
	app     *app
	path    string
	log     logging.Logger
	metrics *metrics.Collector
	reloads *mailbox.Mailbox[watcher.Event]
	watch   *watcher.Watcher

	current atomic.Pointer[scheduler.Scheduler]
}

// Status and Wake always reach the scheduler currently in charge.
func (s *supervisor) Status() scheduler.Status {
	return s.current.Load().Status()
}

func (s *supervisor) Wake() {
	s.current.Load().Wake()
}

func (a *app) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path, cfg, err := a.load()
	if err != nil {
		return err
	}
	log, err := a.logger(cfg)
	if err != nil {
		return err
	}
	log.Info("starting zam", "version", buildinfo.Version, "config", path)

	reg := prometheus.NewRegistry()
	s := &supervisor{
		app:     a,
		path:    path,
		log:     log,
		metrics: metrics.NewDefault(reg),
		reloads: mailbox.New[watcher.Event](),
	}
	sched, err := s.newScheduler(cfg)
	if err != nil {
		return err
	}
	s.current.Store(sched)

	g, ctx := errgroup.WithContext(ctx)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				s.reloads.Put(watcher.Event{Path: path, ModTime: time.Now(), Reason: "SIGHUP"})
			}
		}
	})

	if cfg.Reload.Enabled {
		s.watch = watcher.New(path, cfg.Reload, log, s.reloads)
		g.Go(func() error { return s.watch.Start(ctx) })
	}
	if cfg.HTTP.Enabled {
		srv := httpapi.New(cfg.HTTP.Listen, s, reg, log)
		g.Go(func() error { return srv.Run(ctx) })
	}
	g.Go(func() error { return s.supervise(ctx, cfg, sched) })

	err = g.Wait()
	log.Info("exit complete")
	return err
}

func (s *supervisor) newScheduler(cfg *config.Config) (*scheduler.Scheduler, error) {
	p, err := build(cfg, s.app.env(s.log, s.metrics))
	if err != nil {
		return nil, err
	}
	return scheduler.New(p.tasks(), scheduler.Options{
		Clock:      s.app.clock,
		IdlePoll:   cfg.Scheduler.IdlePoll.Std(),
		RetryDelay: cfg.Scheduler.RetryDelay.Std(),
		Log:        s.log,
		Metrics:    s.metrics,
	}), nil
}

// supervise runs sched until a reload yields a replacement, then swaps.
// A swap cancels whatever task the old scheduler was running; the new one
// picks it up again from the backend state.
func (s *supervisor) supervise(ctx context.Context, cfg *config.Config, sched *scheduler.Scheduler) error {
	for {
		runCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- sched.Run(runCtx) }()

		next, nextCfg, ok := s.awaitReload(ctx, cfg)
		stop()
		if err := <-done; err != nil {
			return err
		}
		if !ok {
			return nil
		}

		s.metrics.ForgetTasks()
		s.current.Store(next)
		sched, cfg = next, nextCfg
		s.log.Info("configuration reloaded", logging.Event, "reload", "datasets", len(cfg.Datasets))
	}
}

// awaitReload blocks until a reload request produces a usable scheduler.
// Failed reloads are logged and the running configuration stays.
func (s *supervisor) awaitReload(ctx context.Context, cfg *config.Config) (*scheduler.Scheduler, *config.Config, bool) {
	for {
		ev, ok := s.reloads.Take(ctx)
		if !ok {
			return nil, nil, false
		}
		s.log.Info("reloading configuration", logging.Event, "reload", "reason", ev.Reason)

		next, err := s.app.loadFrom(s.path)
		var sched *scheduler.Scheduler
		if err == nil {
			sched, err = s.newScheduler(next)
		}
		s.metrics.ReloadFinished(err)
		if err != nil {
			s.log.Error("reload failed, keeping the running configuration", logging.ErrorKey, err)
			continue
		}

		s.warnRestartOnly(cfg, next)
		if s.watch != nil {
			s.watch.UpdateConfig(next.Reload)
		}
		return sched, next, true
	}
}

func (s *supervisor) warnRestartOnly(old, next *config.Config) {
	if old.Logging != next.Logging {
		s.log.Warn("logging settings change on restart only")
	}
	if old.HTTP != next.HTTP {
		s.log.Warn("http settings change on restart only")
	}
	if old.Reload.Enabled != next.Reload.Enabled || old.Reload.Mode != next.Reload.Mode {
		s.log.Warn("reload mode changes on restart only")
	}
}

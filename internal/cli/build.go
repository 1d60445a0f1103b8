package cli

import (
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/raoulx24/zam/internal/backend"
	"github.com/raoulx24/zam/internal/config"
	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/task"
)

// env is what every adapter and task of one build shares.
type env struct {
	log      logging.Logger
	runner   backend.Runner
	observer backend.Observer
	clock    schedule.Clock
	now      func() time.Time
}

// datasetPlan is everything built for one configured dataset.
type datasetPlan struct {
	config       config.DatasetConfig
	source       *backend.Adapter
	destinations []*backend.Adapter
	snapshot     *task.SnapshotTask
	replications []*task.ReplicationTask
	prunes       []*task.PruneTask
}

type plan []datasetPlan

// build turns a validated configuration into adapters and tasks.
// All adapters share one command rate limiter.
func build(cfg *config.Config, e env) (plan, error) {
	var limiter *rate.Limiter
	if cps := cfg.Backend.CommandsPerSecond; cps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cps), int(math.Max(1, math.Ceil(cps))))
	}

	p := make(plan, 0, len(cfg.Datasets))
	for _, ds := range cfg.Datasets {
		dp, err := buildDataset(cfg.Backend, ds, limiter, e)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Dataset, err)
		}
		p = append(p, dp)
	}
	return p, nil
}

func buildDataset(b config.BackendConfig, ds config.DatasetConfig, limiter *rate.Limiter, e env) (datasetPlan, error) {
	policy, err := ds.Snapshot.Policy()
	if err != nil {
		return datasetPlan{}, err
	}

	opts := e.adapterOptions(b, ds, limiter)
	taskOpts := e.taskOptions()
	dp := datasetPlan{config: ds, source: backend.New(ds.Dataset, opts)}

	dp.snapshot = task.NewSnapshot("snapshot "+ds.Dataset, dp.source, policy, taskOpts...)
	if ds.Prune {
		dp.prunes = append(dp.prunes, task.NewPrune("prune "+dp.source.String(), dp.source, ds.Strategy(), taskOpts...))
	}

	for _, d := range ds.Destinations {
		dest := backend.NewRemote(d.Location(), opts)
		dp.destinations = append(dp.destinations, dest)

		name := fmt.Sprintf("replicate %s to %s", ds.Dataset, dest)
		dp.replications = append(dp.replications,
			task.NewReplication(name, dp.source, dest, d.Strategy(ds), d.Period.Std(), taskOpts...))

		// replicas are only pruned when they declare their own retention
		if len(d.Retention) > 0 {
			dp.prunes = append(dp.prunes, task.NewPrune("prune "+dest.String(), dest, d.Strategy(ds), taskOpts...))
		}
	}
	return dp, nil
}

func (e env) adapterOptions(b config.BackendConfig, ds config.DatasetConfig, limiter *rate.Limiter) backend.Options {
	return backend.Options{
		ZFSPath:         b.ZFSPath,
		SSHPath:         b.SSHPath,
		CommandTimeout:  b.CommandTimeout.Std(),
		TransferTimeout: b.TransferTimeout.Std(),
		Recursive:       ds.Recursive,
		Namer:           ds.Namer(),
		ListRetries:     b.ListRetries,
		Runner:          e.runner,
		Limiter:         limiter,
		Observer:        e.observer,
		Log:             e.log,
		Now:             e.now,
	}
}

func (e env) taskOptions() []task.Option {
	opts := []task.Option{task.WithLogger(e.log)}
	if e.clock != nil {
		opts = append(opts, task.WithClock(e.clock))
	}
	return opts
}

// tasks lists the tasks in registration order: per dataset the snapshot
// task, then its replications, then its prunes.
func (p plan) tasks() []task.Task {
	var out []task.Task
	for _, dp := range p {
		out = append(out, dp.snapshot)
		for _, r := range dp.replications {
			out = append(out, r)
		}
		for _, pr := range dp.prunes {
			out = append(out, pr)
		}
	}
	return out
}

// only keeps the named datasets; no names keeps all of them.
func (p plan) only(names []string) (plan, error) {
	if len(names) == 0 {
		return p, nil
	}
	var out plan
	for _, name := range names {
		i := slices.IndexFunc(p, func(dp datasetPlan) bool { return dp.config.Dataset == name })
		if i < 0 {
			return nil, fmt.Errorf("dataset %q is not configured", name)
		}
		out = append(out, p[i])
	}
	return out, nil
}

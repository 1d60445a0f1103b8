package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/raoulx24/zam/internal/schedule"
)

// Validate goes through the configuration and returns every problem found.
func Validate(cfg *Config) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
		add("logging.level: %v", err)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		add("logging.format: must be text or json, got %q", cfg.Logging.Format)
	}

	if cfg.HTTP.Enabled && cfg.HTTP.Listen == "" {
		add("http.listen: required when http is enabled")
	}

	if cfg.Scheduler.IdlePoll <= 0 {
		add("scheduler.idle_poll: must be positive")
	}
	if cfg.Scheduler.RetryDelay <= 0 {
		add("scheduler.retry_delay: must be positive")
	}

	if cfg.Backend.ZFSPath == "" {
		add("backend.zfs_path: required")
	}
	if cfg.Backend.CommandTimeout <= 0 {
		add("backend.command_timeout: must be positive")
	}
	if cfg.Backend.TransferTimeout <= 0 {
		add("backend.transfer_timeout: must be positive")
	}
	if cfg.Backend.CommandsPerSecond < 0 {
		add("backend.commands_per_second: must not be negative")
	}
	if cfg.Backend.ListRetries < 0 {
		add("backend.list_retries: must not be negative")
	}

	switch cfg.Reload.Mode {
	case "auto", "poll", "fsnotify":
	default:
		add("reload.mode: must be auto, poll or fsnotify, got %q", cfg.Reload.Mode)
	}
	if cfg.Reload.Enabled && cfg.Reload.PollInterval <= 0 {
		add("reload.poll_interval: must be positive")
	}

	if len(cfg.Datasets) == 0 {
		add("datasets: at least one dataset is required")
	}
	seen := map[string]bool{}
	for i, ds := range cfg.Datasets {
		errs = append(errs, validateDataset(fmt.Sprintf("datasets[%d]", i), ds)...)
		if seen[ds.Dataset] {
			add("datasets[%d].dataset: %q is listed twice", i, ds.Dataset)
		}
		seen[ds.Dataset] = true
	}
	return errs
}

func validateDataset(path string, ds DatasetConfig) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(path+"."+format, args...))
	}

	if ds.Dataset == "" {
		add("dataset: required")
	}
	if ds.Prefix == "" {
		add("prefix: must not be empty")
	}

	switch {
	case ds.Snapshot.Cron != "" && ds.Snapshot.Period != 0:
		add("snapshot: set either period or cron, not both")
	case ds.Snapshot.Cron != "":
		if _, err := schedule.Cron(ds.Snapshot.Cron); err != nil {
			add("snapshot.cron: %v", err)
		}
	case ds.Snapshot.Period <= 0:
		add("snapshot: a positive period or a cron spec is required")
	}

	if (ds.Prune || len(ds.Destinations) > 0) && len(ds.Retention) == 0 {
		add("retention: required when pruning or replicating")
	}
	errs = append(errs, validateBuckets(path+".retention", ds.Retention)...)

	for j, d := range ds.Destinations {
		dp := fmt.Sprintf("destinations[%d]", j)
		if d.Dataset == "" {
			add("%s.dataset: required", dp)
		}
		if d.Host == "" && d.Dataset == ds.Dataset {
			add("%s: replicating %q onto itself", dp, ds.Dataset)
		}
		if d.Port != 0 && (d.Port < 1 || d.Port > 65535) {
			add("%s.port: %d out of range", dp, d.Port)
		}
		switch {
		case d.Period <= 0:
			add("%s.period: must be positive", dp)
		case ds.Snapshot.Cron == "" && d.Period < ds.Snapshot.Period:
			add("%s.period: %s is shorter than the snapshot period %s", dp, d.Period, ds.Snapshot.Period)
		}
		errs = append(errs, validateBuckets(path+"."+dp+".retention", d.Retention)...)
	}
	return errs
}

func validateBuckets(path string, bs []BucketConfig) []error {
	var errs []error
	for i, b := range bs {
		if b.Period <= 0 {
			errs = append(errs, fmt.Errorf("%s[%d].period: must be positive", path, i))
			continue
		}
		if b.MaxAge != 0 && b.MaxAge < b.Period {
			errs = append(errs, fmt.Errorf("%s[%d].max_age: %s is shorter than the period %s", path, i, b.MaxAge, b.Period))
		}
	}
	return errs
}

// Package cli implements the zam command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raoulx24/zam/internal/backend"
	"github.com/raoulx24/zam/internal/buildinfo"
	"github.com/raoulx24/zam/internal/config"
	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/schedule"
)

// app holds the global flags and the collaborators commands run with.
type app struct {
	configPath string
	logLevel   string

	logOut io.Writer
	runner backend.Runner
	clock  schedule.Clock
	now    func() time.Time
}

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	return newRootCommand(&app{logOut: os.Stderr})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "zam",
		Short:         "ZFS snapshot manager",
		Long:          "zam takes ZFS snapshots on a schedule, replicates them and prunes them by retention buckets.",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", fmt.Sprintf("config file (default: first of %v)", config.DefaultPaths))
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newRunCommand(a),
		newSnapshotCommand(a),
		newListCommand(a),
		newPruneCommand(a),
		newVersionCommand(),
	)
	return root
}

// load resolves and reads the configuration, applying flag overrides.
func (a *app) load() (string, *config.Config, error) {
	path, err := config.Resolve(a.configPath, config.DefaultPaths)
	if err != nil {
		return "", nil, err
	}
	cfg, err := a.loadFrom(path)
	return path, cfg, err
}

func (a *app) loadFrom(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	return cfg, nil
}

func (a *app) logger(cfg *config.Config) (logging.Logger, error) {
	out := a.logOut
	if out == nil {
		out = os.Stderr
	}
	return logging.NewWithWriter(out, cfg.Logging.Level, cfg.Logging.Format)
}

func (a *app) env(log logging.Logger, observer backend.Observer) env {
	if log == nil {
		log = logging.Nop()
	}
	return env{log: log, runner: a.runner, observer: observer, clock: a.clock, now: a.now}
}

// setup loads the configuration and builds the plan for one-shot commands.
func (a *app) setup(datasets []string) (plan, logging.Logger, error) {
	_, cfg, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	log, err := a.logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := build(cfg, a.env(log, nil))
	if err != nil {
		return nil, nil, err
	}
	p, err = p.only(datasets)
	return p, log, err
}

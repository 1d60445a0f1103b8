// Package config loads and validates the zam configuration file.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raoulx24/zam/internal/retention"
	"github.com/raoulx24/zam/internal/schedule"
	"github.com/raoulx24/zam/internal/snapshot"
)

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Backend   BackendConfig   `yaml:"backend"`
	Reload    ReloadConfig    `yaml:"reload"`
	Datasets  []DatasetConfig `yaml:"datasets"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "info", "debug", etc.
	Format string `yaml:"format"` // "json", "text"
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type SchedulerConfig struct {
	IdlePoll   Duration `yaml:"idle_poll"`
	RetryDelay Duration `yaml:"retry_delay"`
}

type BackendConfig struct {
	ZFSPath           string   `yaml:"zfs_path"`
	SSHPath           string   `yaml:"ssh_path"`
	CommandTimeout    Duration `yaml:"command_timeout"`
	TransferTimeout   Duration `yaml:"transfer_timeout"`
	CommandsPerSecond float64  `yaml:"commands_per_second"` // 0 means unlimited
	ListRetries       int      `yaml:"list_retries"`
}

type ReloadConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Mode         string   `yaml:"mode"` // "auto", "poll", "fsnotify"
	PollInterval Duration `yaml:"poll_interval"`
	Debounce     Duration `yaml:"debounce"`
}

// DatasetConfig is one managed dataset and everything done to it.
type DatasetConfig struct {
	Dataset      string              `yaml:"dataset"`
	Prefix       string              `yaml:"prefix"`
	Recursive    bool                `yaml:"recursive"`
	Snapshot     SnapshotConfig      `yaml:"snapshot"`
	Prune        bool                `yaml:"prune"`
	Retention    []BucketConfig      `yaml:"retention"`
	Destinations []DestinationConfig `yaml:"destinations"`
}

// UnmarshalYAML fills in per-dataset defaults before decoding.
func (d *DatasetConfig) UnmarshalYAML(n *yaml.Node) error {
	type plain DatasetConfig
	p := plain{Prefix: snapshot.DefaultPrefix, Recursive: true, Prune: true}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*d = DatasetConfig(p)
	return nil
}

// Namer returns the naming scheme of the dataset's snapshots.
func (d DatasetConfig) Namer() snapshot.Namer {
	return snapshot.Namer{Prefix: d.Prefix, Layout: snapshot.DefaultLayout}
}

// Strategy returns the dataset's retention strategy.
func (d DatasetConfig) Strategy() *retention.Bucketed {
	return retention.New(Buckets(d.Retention))
}

// SnapshotConfig sets the snapshot cadence: a fixed period or a cron spec.
type SnapshotConfig struct {
	Period Duration `yaml:"period"`
	Cron   string   `yaml:"cron"`
}

// Policy returns the schedule policy described by the config.
func (s SnapshotConfig) Policy() (schedule.Policy, error) {
	if s.Cron != "" {
		return schedule.Cron(s.Cron)
	}
	return schedule.Every(s.Period.Std()), nil
}

type BucketConfig struct {
	Period Duration `yaml:"period"`
	MaxAge Duration `yaml:"max_age"` // empty keeps forever
}

// Buckets converts configured buckets.
func Buckets(bs []BucketConfig) []retention.Bucket {
	out := make([]retention.Bucket, 0, len(bs))
	for _, b := range bs {
		out = append(out, retention.Bucket{Period: b.Period.Std(), MaxAge: b.MaxAge.Std()})
	}
	return out
}

// DestinationConfig is a replication target. Without a host the target
// dataset lives on this machine.
type DestinationConfig struct {
	Host         string         `yaml:"host"`
	Port         int            `yaml:"port"`
	User         string         `yaml:"user"`
	IdentityFile string         `yaml:"identity_file"`
	Dataset      string         `yaml:"dataset"`
	Period       Duration       `yaml:"period"`
	Retention    []BucketConfig `yaml:"retention"` // defaults to the dataset's
}

// Location returns where the destination lives.
func (d DestinationConfig) Location() snapshot.Location {
	return snapshot.Location{
		Host:         d.Host,
		Port:         d.Port,
		User:         d.User,
		IdentityFile: d.IdentityFile,
		Dataset:      d.Dataset,
	}
}

// Strategy returns the destination's retention, falling back to the dataset's.
func (d DestinationConfig) Strategy(parent DatasetConfig) *retention.Bucketed {
	if len(d.Retention) == 0 {
		return parent.Strategy()
	}
	return retention.New(Buckets(d.Retention))
}

// Default returns the configuration used for everything the file leaves out.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		HTTP:    HTTPConfig{Listen: "127.0.0.1:9120"},
		Scheduler: SchedulerConfig{
			IdlePoll:   Duration(time.Hour),
			RetryDelay: Duration(5 * time.Minute),
		},
		Backend: BackendConfig{
			ZFSPath:         "zfs",
			SSHPath:         "ssh",
			CommandTimeout:  Duration(2 * time.Minute),
			TransferTimeout: Duration(12 * time.Hour),
			ListRetries:     3,
		},
		Reload: ReloadConfig{
			Enabled:      true,
			Mode:         "auto",
			PollInterval: Duration(10 * time.Second),
			Debounce:     Duration(500 * time.Millisecond),
		},
	}
}

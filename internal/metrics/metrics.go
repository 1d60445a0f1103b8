// Package metrics exposes Prometheus metrics for zam.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "zam"

const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector records scheduler, task and backend activity.
type Collector struct {
	taskRuns        *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	nextRun         *prometheus.GaugeVec
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	snapshots       *prometheus.CounterVec
	reloads         *prometheus.CounterVec
}

// New creates the collector and registers it with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Task runs by kind and result.",
		}, []string{"kind", "result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task run duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600, 4 * 3600},
		}, []string{"kind"}),
		nextRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_next_run_timestamp_seconds",
			Help:      "Unix time of the next run per task, 0 when unscheduled.",
		}, []string{"task"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_commands_total",
			Help:      "Backend commands by operation and result.",
		}, []string{"op", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_command_duration_seconds",
			Help:      "Backend command duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"op"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots created, destroyed and replicated.",
		}, []string{"event"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.taskRuns,
		c.taskDuration,
		c.nextRun,
		c.commands,
		c.commandDuration,
		c.snapshots,
		c.reloads,
	)
	return c
}

// NewDefault registers the collector along with the Go and process collectors.
func NewDefault(reg *prometheus.Registry) *Collector {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// TaskFinished records one task run.
func (c *Collector) TaskFinished(kind string, err error, elapsed time.Duration) {
	c.taskRuns.WithLabelValues(kind, result(err)).Inc()
	c.taskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// NextRun publishes when a task runs next.
func (c *Collector) NextRun(task string, at time.Time, scheduled bool) {
	if !scheduled {
		c.nextRun.WithLabelValues(task).Set(0)
		return
	}
	c.nextRun.WithLabelValues(task).Set(float64(at.Unix()))
}

// ForgetTasks drops the next-run series, used when the task set is replaced.
func (c *Collector) ForgetTasks() {
	c.nextRun.Reset()
}

// ObserveCommand records one backend command.
func (c *Collector) ObserveCommand(op string, err error, elapsed time.Duration) {
	c.commands.WithLabelValues(op, result(err)).Inc()
	c.commandDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	switch op {
	case "snapshot":
		c.snapshots.WithLabelValues("created").Inc()
	case "destroy":
		c.snapshots.WithLabelValues("destroyed").Inc()
	case "send":
		c.snapshots.WithLabelValues("replicated").Inc()
	}
}

// ReloadFinished records one configuration reload.
func (c *Collector) ReloadFinished(err error) {
	c.reloads.WithLabelValues(result(err)).Inc()
}

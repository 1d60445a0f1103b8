package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskMetrics(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.TaskFinished("snapshot", nil, time.Second)
	c.TaskFinished("snapshot", errors.New("boom"), time.Second)
	c.TaskFinished("prune", nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.taskRuns.WithLabelValues("snapshot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.taskRuns.WithLabelValues("snapshot", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.taskRuns.WithLabelValues("prune", "ok")))
}

func TestNextRunGauge(t *testing.T) {
	c := New(prometheus.NewRegistry())
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.NextRun("snapshot tank", at, true)
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(c.nextRun.WithLabelValues("snapshot tank")))

	c.NextRun("snapshot tank", time.Time{}, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.nextRun.WithLabelValues("snapshot tank")))

	c.ForgetTasks()
	assert.Equal(t, 0, testutil.CollectAndCount(c.nextRun))
}

func TestCommandMetricsCountSnapshots(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveCommand("snapshot", nil, time.Millisecond)
	c.ObserveCommand("destroy", nil, time.Millisecond)
	c.ObserveCommand("destroy", errors.New("busy"), time.Millisecond)
	c.ObserveCommand("send", nil, time.Millisecond)
	c.ObserveCommand("list", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshots.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshots.WithLabelValues("destroyed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshots.WithLabelValues("replicated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("destroy", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("list", "ok")))
}

func TestRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestDefaultIncludesRuntime(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewDefault(reg)
	c.ReloadFinished(nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["zam_config_reloads_total"])
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raoulx24/zam/internal/backend"
	"github.com/raoulx24/zam/internal/schedule"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const baseConfig = `
datasets:
  - dataset: tank/a
    snapshot:
      period: 1h
    retention:
      - period: 1d
    destinations:
      - host: backup
        dataset: pool/a
        period: 1d
  - dataset: tank/b
    prune: false
    snapshot:
      cron: "0 * * * *"
`

// fakeRunner answers commands by their rendering and records every call.
// Unknown commands succeed with no output.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}}
}

func (f *fakeRunner) on(cmd, stdout string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[cmd] = stdout
}

func (f *fakeRunner) Output(_ context.Context, c backend.Command) (backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := c.String()
	f.calls = append(f.calls, key)
	return backend.Result{Stdout: []byte(f.outputs[key])}, nil
}

func (f *fakeRunner) Pipe(_ context.Context, src, dst backend.Command) (backend.Result, backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, src.String()+" | "+dst.String())
	return backend.Result{}, backend.Result{}, nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "zam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testApp(t *testing.T, runner backend.Runner) *app {
	t.Helper()
	return &app{
		configPath: writeConfig(t, t.TempDir(), baseConfig),
		logOut:     &bytes.Buffer{},
		runner:     runner,
		clock:      schedule.NewManualClock(t0),
		now:        func() time.Time { return t0 },
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	// flag registration resets the fields it binds
	path := a.configPath
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", path}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}


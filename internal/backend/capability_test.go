package backend

import "github.com/raoulx24/zam/internal/task"

var (
	_ task.Snapshoter  = (*Adapter)(nil)
	_ task.Replicator  = (*Adapter)(nil)
	_ task.Pruner      = (*Adapter)(nil)
	_ task.Destination = (*Adapter)(nil)
)

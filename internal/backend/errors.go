package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raoulx24/zam/internal/snapshot"
)

var (
	// ErrUnavailable means the tool or the connection could not be used.
	// It is recoverable, the next run tries again.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrCommandFailed means the command ran and exited non-zero, or its
	// output could not be understood.
	ErrCommandFailed = errors.New("backend command failed")
	// ErrUnsupported means the adapter variant cannot perform the operation.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrPartialBatch means some items of a batch failed.
	ErrPartialBatch = errors.New("partial batch failure")
	// ErrNoCommonSnapshot means an incremental transfer has no base to start from.
	ErrNoCommonSnapshot = errors.New("no common snapshot")
)

// CommandError describes one failed backend invocation.
type CommandError struct {
	Op       string
	Target   string
	Args     []string
	ExitCode int
	Stderr   string
	// Err is one of the package sentinels.
	Err error
	// Cause is the underlying error when the command could not complete.
	Cause error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Op, e.Target, e.Err)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *CommandError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Failure is one failed item of a batch.
type Failure struct {
	Snapshot snapshot.Snapshot
	Err      error
}

// BatchError collects every failed item of a batch operation.
type BatchError struct {
	Op       string
	Target   string
	Total    int
	Failures []Failure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Snapshot.Name, f.Err))
	}
	return fmt.Sprintf("%s %s: %d of %d failed: %s",
		e.Op, e.Target, len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrPartialBatch)
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func (e *BatchError) add(s snapshot.Snapshot, err error) {
	e.Failures = append(e.Failures, Failure{Snapshot: s, Err: err})
}

func (e *BatchError) orNil() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e
}

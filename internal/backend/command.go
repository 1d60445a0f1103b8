package backend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/raoulx24/zam/internal/snapshot"
)

// Command is one program invocation.
type Command struct {
	Path string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Result is what a finished process left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner starts processes. A non-zero exit is reported through Result;
// the error is reserved for processes that could not run to completion.
type Runner interface {
	Output(ctx context.Context, c Command) (Result, error)
	// Pipe runs src with its stdout connected to the stdin of dst.
	Pipe(ctx context.Context, src, dst Command) (Result, Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	return exitResult(ctx, res, err)
}

func (ExecRunner) Pipe(ctx context.Context, src, dst Command) (Result, Result, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return Result{}, Result{}, err
	}

	send := exec.CommandContext(ctx, src.Path, src.Args...)
	recv := exec.CommandContext(ctx, dst.Path, dst.Args...)
	var sendErr, recvOut, recvErr bytes.Buffer
	send.Stdout = w
	send.Stderr = &sendErr
	recv.Stdin = r
	recv.Stdout = &recvOut
	recv.Stderr = &recvErr

	if err := recv.Start(); err != nil {
		r.Close()
		w.Close()
		return Result{}, Result{}, err
	}
	if err := send.Start(); err != nil {
		r.Close()
		w.Close()
		_ = recv.Wait()
		return Result{}, Result{}, err
	}
	// the children hold their own ends now
	r.Close()
	w.Close()

	sendRun := send.Wait()
	recvRun := recv.Wait()

	srcRes, err := exitResult(ctx, Result{Stderr: sendErr.Bytes()}, sendRun)
	if err != nil {
		return srcRes, Result{}, err
	}
	dstRes, err := exitResult(ctx, Result{Stdout: recvOut.Bytes(), Stderr: recvErr.Bytes()}, recvRun)
	return srcRes, dstRes, err
}

func exitResult(ctx context.Context, res Result, err error) (Result, error) {
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// sshExitUnavailable is what ssh exits with when it could not connect.
const sshExitUnavailable = 255

// wrap prefixes a command with the remote shell for loc.
// The remote side receives a single shell-quoted command line.
func wrap(sshPath string, loc snapshot.Location, c Command) Command {
	args := make([]string, 0, 8)
	if loc.Port != 0 {
		args = append(args, "-p", strconv.Itoa(loc.Port))
	}
	if loc.IdentityFile != "" {
		args = append(args, "-i", loc.IdentityFile)
	}
	args = append(args, "-o", "BatchMode=yes", loc.Address())

	words := make([]string, 0, len(c.Args)+1)
	words = append(words, shellQuote(c.Path))
	for _, a := range c.Args {
		words = append(words, shellQuote(a))
	}
	args = append(args, strings.Join(words, " "))
	return Command{Path: sshPath, Args: args}
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

func shellQuote(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

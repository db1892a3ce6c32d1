// Package pgexec runs the PostgreSQL client tools (pg_dump, psql, pg_restore)
// and classifies their mixed success/warning/failure output.
package pgexec

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Command is one external tool invocation. Env entries are KEY=VALUE pairs
// appended to the inherited environment; credentials travel here, never in
// Args.
type Command struct {
	Bin  string
	Args []string
	Env  []string
}

// Result holds everything observed about a finished command.
type Result struct {
	Cmd      string
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	Err      error
}

// Launched reports whether the process actually started. A false value means
// Err describes a launch failure (binary missing, fork error), not a tool
// diagnostic.
func (r Result) Launched() bool {
	return r.Err == nil || r.ExitCode >= 0
}

// Runner executes commands. The orchestrator depends on this interface so
// tests can script tool behavior without spawning processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// ExecRunner runs commands via os/exec, logging start/finish and capturing
// both output streams.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) Result {
	cmd := exec.CommandContext(ctx, c.Bin, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	slog.Info("exec start", "cmd", c.Bin, "args", c.Args)
	start := time.Now()

	err := cmd.Run()
	duration := time.Since(start)

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	slog.Info("exec done", "cmd", c.Bin, "code", exitCode, "dur", duration, "err", err)

	return Result{
		Cmd:      c.Bin,
		Args:     c.Args,
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
		Err:      err,
	}
}

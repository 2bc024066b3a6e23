// Package procrun executes external toolchain commands and buffers their output.
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wasmloader/internal/logging"
	"wasmloader/internal/trace"
)

// ErrLaunch is matched by every *LaunchError.
var ErrLaunch = errors.New("toolchain launch failure")

// Command describes one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env holds KEY=VALUE overrides appended to the inherited environment.
	Env []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Outcome is the fully buffered result of a finished process.
// A non-zero ExitCode is a normal outcome, not an error.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports whether the process exited with status 0.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// LaunchError reports that the executable could not be started at all.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLaunch) hold for launch failures.
func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

// Runner executes commands. Implementations must not return an error for a
// non-zero exit status.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Outcome, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (Outcome, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Outcome, error) {
	return f(ctx, cmd)
}

// Exec runs commands as real child processes. Each child gets its own process
// group; cancelling ctx kills the whole group.
type Exec struct {
	// WaitDelay bounds how long Run waits for output pipes after a kill.
	WaitDelay time.Duration
}

// NewExec returns an Exec runner with default settings.
func NewExec() *Exec {
	return &Exec{WaitDelay: 5 * time.Second}
}

// Run starts cmd, waits for it to exit and returns its buffered output.
func (r *Exec) Run(ctx context.Context, c Command) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var out Outcome
	if c.Name == "" {
		return out, &LaunchError{Command: "<empty>", Err: exec.ErrNotFound}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	_, span := trace.Start(ctx, trace.ScopeProcess, "exec:"+c.Name)
	defer span.End("")

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)
	if r != nil && r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}

	logging.L().Debug("exec", zap.String("cmd", c.String()), zap.String("dir", c.Dir))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return out, &LaunchError{Command: c.Name, Err: err}
	}
	waitErr := cmd.Wait()
	out.Duration = time.Since(start)
	out.Stdout = stdout.Bytes()
	out.Stderr = stderr.Bytes()

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		return out, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("%s: %w", c.Name, waitErr)
		}
		out.ExitCode = exitErr.ExitCode()
	}
	span.Set("exit", strconv.Itoa(out.ExitCode))
	logging.L().Debug("exec finished",
		zap.String("cmd", c.Name),
		zap.Int("exit", out.ExitCode),
		zap.Duration("elapsed", out.Duration),
	)
	return out, nil
}

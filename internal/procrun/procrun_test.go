package procrun

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecCollectsStreamsAndExitCode(t *testing.T) {
	requireShell(t)
	r := NewExec()
	out, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if out.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", out.ExitCode)
	}
	if strings.TrimSpace(string(out.Stdout)) != "out" {
		t.Fatalf("stdout = %q", out.Stdout)
	}
	if strings.TrimSpace(string(out.Stderr)) != "err" {
		t.Fatalf("stderr = %q", out.Stderr)
	}
	if out.Success() {
		t.Fatal("Success() must be false for exit 3")
	}
}

func TestExecWorkingDirAndEnv(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	out, err := NewExec().Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $WASMLOADER_PROBE"},
		Dir:  dir,
		Env:  []string{"WASMLOADER_PROBE=present"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out.Stdout)), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
	if !strings.HasSuffix(lines[0], dirBase(dir)) {
		t.Fatalf("pwd = %q, want suffix %q", lines[0], dirBase(dir))
	}
	if lines[1] != "present" {
		t.Fatalf("env probe = %q", lines[1])
	}
}

func dirBase(dir string) string {
	idx := strings.LastIndex(dir, "/")
	return dir[idx+1:]
}

func TestExecMissingExecutableIsLaunchError(t *testing.T) {
	_, err := NewExec().Run(context.Background(), Command{Name: "wasmloader-definitely-missing-tool"})
	if err == nil {
		t.Fatal("expected launch error")
	}
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("errors.Is(err, ErrLaunch) = false for %v", err)
	}
	var le *LaunchError
	if !errors.As(err, &le) || le.Command != "wasmloader-definitely-missing-tool" {
		t.Fatalf("expected *LaunchError, got %T", err)
	}
}

func TestExecCancellationKillsProcessTree(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewExec().Run(ctx, Command{
		Name: "sh",
		Args: []string{"-c", "sleep 30 & wait"},
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("cancellation took %v; child tree was not killed", elapsed)
	}
}

func TestRunnerFunc(t *testing.T) {
	var got Command
	r := RunnerFunc(func(_ context.Context, c Command) (Outcome, error) {
		got = c
		return Outcome{ExitCode: 1}, nil
	})
	out, err := r.Run(context.Background(), Command{Name: "cargo", Args: []string{"build"}})
	if err != nil || out.ExitCode != 1 {
		t.Fatalf("unexpected outcome %+v %v", out, err)
	}
	if got.String() != "cargo build" {
		t.Fatalf("Command.String() = %q", got.String())
	}
}

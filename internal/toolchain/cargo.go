package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"wasmloader/internal/diag"
	"wasmloader/internal/logging"
	"wasmloader/internal/procrun"
)

// CargoDriver builds with `cargo build --message-format=json`.
type CargoDriver struct {
	Runner procrun.Runner
	Tools  Tools
	// Stderr parses stderr of a failed build whose JSON stream carries no
	// error, e.g. a manifest or dependency resolution failure.
	Stderr Parser
}

// NewCargoDriver returns the standard-mode driver.
func NewCargoDriver(runner procrun.Runner, tools Tools) *CargoDriver {
	return &CargoDriver{Runner: runner, Tools: tools.WithDefaults(), Stderr: TextBlockParser{}}
}

func (d *CargoDriver) Name() string { return "cargo" }

// Command returns the command line for inv.
func (d *CargoDriver) Command(inv Invocation) procrun.Command {
	args := []string{"build", "--message-format=json", "--target=" + WasmTarget}
	if inv.Config.Release {
		args = append(args, "--release")
	}
	args = append(args, inv.Config.Args...)
	return procrun.Command{
		Name: d.Tools.WithDefaults().Cargo,
		Args: args,
		Dir:  inv.ProjectDir,
		Env:  []string{"CARGO_TERM_COLOR=never"},
	}
}

func (d *CargoDriver) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	inv.transition(StateRunning)
	cmd := d.Command(inv)
	out, err := d.Runner.Run(ctx, cmd)
	if err != nil {
		inv.transition(StateFailed)
		return runFailure(err), err
	}

	stream := JSONStreamParser{}.ParseStream(string(out.Stdout))
	ds := stream.Diagnostics
	if !out.Success() {
		if !diag.HasErrors(ds) {
			ds = append(ds, parserOr(d.Stderr).Parse(string(out.Stderr))...)
		}
		if !diag.HasErrors(ds) {
			ds = append(ds, exitFailure(diag.CompileFailure, cmd, out))
		}
		logging.L().Debug("cargo build failed", zap.Int("exit", out.ExitCode), zap.Int("diagnostics", len(ds)))
		inv.transition(StateFailed)
		return failed(ds), nil
	}

	path, moduleID, ok := locateBinary(stream.Artifacts, inv.ProjectDir)
	if !ok {
		ds = append(ds, diag.Errorf(diag.ArtifactMissing,
			"cargo reported no cdylib .wasm artifact; add crate-type = [\"cdylib\"] to [lib]"))
		inv.transition(StateFailed)
		return failed(ds), nil
	}
	if _, statErr := os.Stat(path); statErr != nil {
		ds = append(ds, diag.Errorf(diag.ArtifactMissing, "compiled binary %s is not readable: %v", path, statErr))
		inv.transition(StateFailed)
		return failed(ds), nil
	}
	inv.transition(StateSucceeded)
	return Result{
		Diagnostics: ds,
		Success:     true,
		State:       StateSucceeded,
		Binary:      Binary{Path: path, ModuleID: moduleID},
		Metadata:    Metadata{TargetFileName: filepath.Base(path)},
	}, nil
}

// locateBinary picks the .wasm file of the cdylib target. The package whose
// manifest lives in projectDir wins over dependencies.
func locateBinary(arts []CompilerArtifact, projectDir string) (path, moduleID string, ok bool) {
	manifest := filepath.Join(projectDir, "Cargo.toml")
	for _, own := range []bool{true, false} {
		for i := len(arts) - 1; i >= 0; i-- {
			a := arts[i]
			if !slices.Contains(a.Kinds, "cdylib") {
				continue
			}
			if own && filepath.Clean(a.ManifestPath) != filepath.Clean(manifest) {
				continue
			}
			for _, f := range a.Filenames {
				if strings.EqualFold(filepath.Ext(f), ".wasm") {
					if !filepath.IsAbs(f) {
						f = filepath.Join(projectDir, f)
					}
					return f, a.TargetName, true
				}
			}
		}
	}
	return "", "", false
}

// Clean runs `cargo clean` in projectDir.
func Clean(ctx context.Context, runner procrun.Runner, tools Tools, projectDir string) ([]diag.Diagnostic, error) {
	cmd := procrun.Command{Name: tools.WithDefaults().Cargo, Args: []string{"clean"}, Dir: projectDir}
	out, err := runner.Run(ctx, cmd)
	if err != nil {
		if errors.Is(err, procrun.ErrLaunch) {
			return []diag.Diagnostic{LaunchDiagnostic(err)}, err
		}
		return nil, fmt.Errorf("cargo clean: %w", err)
	}
	if !out.Success() {
		return []diag.Diagnostic{exitFailure(diag.CompileFailure, cmd, out)}, nil
	}
	return nil, nil
}

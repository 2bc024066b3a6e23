package toolchain

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"wasmloader/internal/diag"
	"wasmloader/internal/logging"
	"wasmloader/internal/procrun"
)

// CargoWebDriver builds with `cargo web build`. It has no structured
// output, so diagnostics come from TextBlockParser and the artifact paths
// from `cargo metadata`.
type CargoWebDriver struct {
	Runner procrun.Runner
	Tools  Tools
	// Parser reads the combined stdout and stderr; cargo-web has no JSON
	// message format.
	Parser Parser
}

// NewCargoWebDriver returns the cargo-web mode driver.
func NewCargoWebDriver(runner procrun.Runner, tools Tools) *CargoWebDriver {
	return &CargoWebDriver{Runner: runner, Tools: tools.WithDefaults(), Parser: TextBlockParser{}}
}

func (d *CargoWebDriver) Name() string { return "cargo-web" }

// Command returns the build command line for inv.
func (d *CargoWebDriver) Command(inv Invocation) procrun.Command {
	args := []string{"web", "build", "--target=" + WasmTarget}
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

func (d *CargoWebDriver) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	inv.transition(StateRunning)
	cmd := d.Command(inv)
	out, err := d.Runner.Run(ctx, cmd)
	if err != nil {
		inv.transition(StateFailed)
		return runFailure(err), err
	}
	text := string(out.Stdout)
	if len(out.Stderr) > 0 {
		text += "\n\n" + string(out.Stderr)
	}
	ds := parserOr(d.Parser).Parse(text)
	if !out.Success() {
		if !diag.HasErrors(ds) {
			ds = append(ds, exitFailure(diag.CompileFailure, cmd, out))
		}
		inv.transition(StateFailed)
		return failed(ds), nil
	}

	meta, metaDiag, err := d.metadata(ctx, inv.ProjectDir)
	if err != nil {
		inv.transition(StateFailed)
		return failed(append(ds, runFailure(err).Diagnostics...)), err
	}
	if metaDiag != nil {
		inv.transition(StateFailed)
		return failed(append(ds, *metaDiag)), nil
	}
	crate, ok := meta.crateName(inv.ProjectDir)
	if !ok {
		inv.transition(StateFailed)
		return failed(append(ds, diag.Errorf(diag.ArtifactMissing,
			"cargo metadata lists no cdylib or bin target for %s", inv.ProjectDir))), nil
	}
	outDir := filepath.Join(meta.TargetDirectory, WasmTarget, inv.Config.Profile())
	wasmPath := filepath.Join(outDir, crate+".wasm")
	gluePath := filepath.Join(outDir, crate+".js")
	for _, p := range []string{wasmPath, gluePath} {
		if _, statErr := os.Stat(p); statErr != nil {
			inv.transition(StateFailed)
			return failed(append(ds, diag.Errorf(diag.ArtifactMissing, "cargo-web output %s not found", p))), nil
		}
	}
	logging.L().Debug("cargo-web artifacts", zap.String("wasm", wasmPath), zap.String("js", gluePath))
	inv.transition(StateSucceeded)
	return Result{
		Diagnostics: ds,
		Success:     true,
		State:       StateSucceeded,
		Binary:      Binary{Path: wasmPath, ModuleID: crate},
		Metadata:    Metadata{TargetFileName: filepath.Base(wasmPath)},
		GluePath:    gluePath,
	}, nil
}

type cargoMetadata struct {
	TargetDirectory string         `json:"target_directory"`
	Packages        []cargoPackage `json:"packages"`
}

type cargoPackage struct {
	Name         string        `json:"name"`
	ManifestPath string        `json:"manifest_path"`
	Targets      []cargoTarget `json:"targets"`
}

func (d *CargoWebDriver) metadata(ctx context.Context, projectDir string) (cargoMetadata, *diag.Diagnostic, error) {
	cmd := procrun.Command{
		Name: d.Tools.WithDefaults().Cargo,
		Args: []string{"metadata", "--format-version=1", "--no-deps"},
		Dir:  projectDir,
	}
	out, err := d.Runner.Run(ctx, cmd)
	if err != nil {
		return cargoMetadata{}, nil, err
	}
	if !out.Success() {
		dg := exitFailure(diag.ArtifactMissing, cmd, out)
		return cargoMetadata{}, &dg, nil
	}
	var meta cargoMetadata
	if err := json.Unmarshal(out.Stdout, &meta); err != nil {
		dg := diag.Errorf(diag.ArtifactMissing, "failed to decode cargo metadata: %v", err)
		return cargoMetadata{}, &dg, nil
	}
	if meta.TargetDirectory == "" {
		meta.TargetDirectory = filepath.Join(projectDir, "target")
	}
	return meta, nil, nil
}

// crateName returns the artifact stem of the first cdylib or bin target of
// the package rooted at projectDir.
func (m cargoMetadata) crateName(projectDir string) (string, bool) {
	manifest := filepath.Clean(filepath.Join(projectDir, "Cargo.toml"))
	var pkg *cargoPackage
	for i := range m.Packages {
		if filepath.Clean(m.Packages[i].ManifestPath) == manifest {
			pkg = &m.Packages[i]
			break
		}
	}
	if pkg == nil && len(m.Packages) == 1 {
		pkg = &m.Packages[0]
	}
	if pkg == nil {
		return "", false
	}
	for _, t := range pkg.Targets {
		if slices.Contains(t.Kind, "cdylib") || slices.Contains(t.Kind, "bin") {
			return strings.ReplaceAll(t.Name, "-", "_"), true
		}
	}
	return "", false
}

package toolchain

import (
	"context"
	"os"
	"path/filepath"

	"wasmloader/internal/config"
	"wasmloader/internal/diag"
	"wasmloader/internal/procrun"
)

// PassInput describes one post-pass over a compiled binary.
type PassInput struct {
	ProjectDir string
	// Input is the binary to transform. It is never modified.
	Input   string
	OutDir  string
	OutName string
	Target  config.Target
}

// PassOutputs lists the files a pass produced. Unused fields are empty.
type PassOutputs struct {
	Binary string
	Glue   string
	Shim   string
}

// PassResult is the outcome of a post-pass. Diagnostics use diag.StageFailure.
type PassResult struct {
	Diagnostics []diag.Diagnostic
	Success     bool
	State       State
	Outputs     PassOutputs
}

// Pass is a post-processing toolchain step.
type Pass interface {
	Tool() string
	Run(ctx context.Context, in PassInput) (PassResult, error)
}

// GCDriver runs `wasm-gc <in> <out>`.
type GCDriver struct {
	Runner procrun.Runner
	Exe    string
	Parser Parser
}

func (d *GCDriver) Tool() string { return exeOr(d.Exe, DefaultTools().WasmGC) }

func (d *GCDriver) Run(ctx context.Context, in PassInput) (PassResult, error) {
	out := filepath.Join(in.OutDir, in.OutName+".wasm")
	cmd := procrun.Command{Name: d.Tool(), Args: []string{in.Input, out}, Dir: in.ProjectDir}
	return runPass(ctx, d.Runner, parserOr(d.Parser), cmd, in, PassOutputs{Binary: out})
}

// BindgenDriver runs wasm-bindgen, producing `<name>_bg.wasm` and `<name>.js`.
type BindgenDriver struct {
	Runner procrun.Runner
	Exe    string
	Parser Parser
}

func (d *BindgenDriver) Tool() string { return exeOr(d.Exe, DefaultTools().WasmBindgen) }

func (d *BindgenDriver) Run(ctx context.Context, in PassInput) (PassResult, error) {
	envFlag := "--browser"
	if in.Target == config.TargetNode {
		envFlag = "--nodejs"
	}
	cmd := procrun.Command{
		Name: d.Tool(),
		Args: []string{in.Input, "--out-dir", in.OutDir, "--out-name", in.OutName, envFlag},
		Dir:  in.ProjectDir,
	}
	return runPass(ctx, d.Runner, parserOr(d.Parser), cmd, in, PassOutputs{
		Binary: filepath.Join(in.OutDir, in.OutName+"_bg.wasm"),
		Glue:   filepath.Join(in.OutDir, in.OutName+".js"),
	})
}

// ShimDriver runs `wasm2es6js <in> -o <out.js>`.
type ShimDriver struct {
	Runner procrun.Runner
	Exe    string
	Parser Parser
}

func (d *ShimDriver) Tool() string { return exeOr(d.Exe, DefaultTools().Wasm2ES6JS) }

func (d *ShimDriver) Run(ctx context.Context, in PassInput) (PassResult, error) {
	out := filepath.Join(in.OutDir, in.OutName+".js")
	cmd := procrun.Command{Name: d.Tool(), Args: []string{in.Input, "-o", out}, Dir: in.ProjectDir}
	return runPass(ctx, d.Runner, parserOr(d.Parser), cmd, in, PassOutputs{Shim: out})
}

// Passes returns the post-pass drivers for tools.
func (t Tools) Passes(runner procrun.Runner) (gc, bindgen, shim Pass) {
	t = t.WithDefaults()
	return &GCDriver{Runner: runner, Exe: t.WasmGC, Parser: TextBlockParser{}},
		&BindgenDriver{Runner: runner, Exe: t.WasmBindgen, Parser: TextBlockParser{}},
		&ShimDriver{Runner: runner, Exe: t.Wasm2ES6JS, Parser: TextBlockParser{}}
}

func runPass(ctx context.Context, runner procrun.Runner, parser Parser, cmd procrun.Command, in PassInput, want PassOutputs) (PassResult, error) {
	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return PassResult{
			State:       StateFailed,
			Diagnostics: []diag.Diagnostic{diag.Errorf(diag.StageFailure, "%s: failed to create output directory: %v", cmd.Name, err)},
		}, nil
	}
	out, err := runner.Run(ctx, cmd)
	if err != nil {
		r := runFailure(err)
		return PassResult{State: StateFailed, Diagnostics: r.Diagnostics}, err
	}
	if !out.Success() {
		ds := parser.Parse(string(out.Stderr))
		for i := range ds {
			if ds[i].IsError() {
				ds[i].Code = diag.StageFailure
			}
		}
		if !diag.HasErrors(ds) {
			ds = append(ds, exitFailure(diag.StageFailure, cmd, out))
		}
		return PassResult{State: StateFailed, Diagnostics: ds}, nil
	}
	var ds []diag.Diagnostic
	for _, d := range parser.Parse(string(out.Stderr)) {
		if !d.IsError() {
			ds = append(ds, d)
		}
	}
	for _, p := range []string{want.Binary, want.Glue, want.Shim} {
		if p == "" {
			continue
		}
		if _, statErr := os.Stat(p); statErr != nil {
			ds = append(ds, diag.Errorf(diag.ArtifactMissing, "%s did not produce %s", cmd.Name, filepath.Base(p)))
			return PassResult{State: StateFailed, Diagnostics: ds}, nil
		}
	}
	return PassResult{State: StateSucceeded, Success: true, Diagnostics: ds, Outputs: want}, nil
}

func exeOr(exe, def string) string {
	if exe == "" {
		return def
	}
	return exe
}


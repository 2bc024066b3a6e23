// Package toolchain drives the external Rust/wasm toolchains and normalizes
// their diagnostics into diag.Diagnostic values.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wasmloader/internal/config"
	"wasmloader/internal/diag"
	"wasmloader/internal/procrun"
)

// WasmTarget is the target triple every build uses.
const WasmTarget = "wasm32-unknown-unknown"

// State tracks one driver invocation.
type State uint8

const (
	StateNotStarted State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Invocation is the input of a primary driver.
type Invocation struct {
	ProjectDir string
	SourcePath string
	Config     config.Config
	// OnState, when set, observes state transitions.
	OnState func(State)
}

func (inv Invocation) transition(s State) {
	if inv.OnState != nil {
		inv.OnState(s)
	}
}

// Binary references the compiled primary binary on disk.
type Binary struct {
	Path     string
	ModuleID string
}

// Metadata is what the toolchain's own manifest reported.
type Metadata struct {
	TargetFileName string
}

// Result is the outcome of one driver invocation. Binary, Metadata and
// GluePath are only set when Success is true.
type Result struct {
	Diagnostics []diag.Diagnostic
	Success     bool
	State       State
	Binary      Binary
	Metadata    Metadata
	// GluePath is the JavaScript glue emitted by the cargo-web toolchain.
	GluePath string
}

// Driver runs one primary toolchain.
//
// A returned error means the toolchain could not be run at all (launch
// failure or cancellation); a failed compile is a Result with Success false.
type Driver interface {
	Name() string
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}

// Tools names the executables the drivers start.
type Tools struct {
	Cargo       string `toml:"cargo" yaml:"cargo" json:"cargo,omitempty"`
	WasmGC      string `toml:"wasm_gc" yaml:"wasm_gc" json:"wasm_gc,omitempty"`
	WasmBindgen string `toml:"wasm_bindgen" yaml:"wasm_bindgen" json:"wasm_bindgen,omitempty"`
	Wasm2ES6JS  string `toml:"wasm2es6js" yaml:"wasm2es6js" json:"wasm2es6js,omitempty"`
}

// DefaultTools resolves every tool through PATH.
func DefaultTools() Tools {
	return Tools{
		Cargo:       "cargo",
		WasmGC:      "wasm-gc",
		WasmBindgen: "wasm-bindgen",
		Wasm2ES6JS:  "wasm2es6js",
	}
}

// WithDefaults fills empty names from DefaultTools.
func (t Tools) WithDefaults() Tools {
	def := DefaultTools()
	if t.Cargo == "" {
		t.Cargo = def.Cargo
	}
	if t.WasmGC == "" {
		t.WasmGC = def.WasmGC
	}
	if t.WasmBindgen == "" {
		t.WasmBindgen = def.WasmBindgen
	}
	if t.Wasm2ES6JS == "" {
		t.Wasm2ES6JS = def.Wasm2ES6JS
	}
	return t
}

// LaunchDiagnostic is the single diagnostic reported when a tool cannot start.
func LaunchDiagnostic(err error) diag.Diagnostic {
	var le *procrun.LaunchError
	if errors.As(err, &le) {
		return diag.Errorf(diag.ToolchainLaunch, "failed to launch %s: %v", le.Command, le.Err)
	}
	return diag.Errorf(diag.ToolchainLaunch, "failed to launch toolchain: %v", err)
}

func failed(ds []diag.Diagnostic) Result {
	return Result{Diagnostics: ds, State: StateFailed}
}

// runFailure converts a Runner error into a failed result. Launch failures
// carry exactly one diagnostic; cancellation carries none.
func runFailure(err error) Result {
	if errors.Is(err, procrun.ErrLaunch) {
		return failed([]diag.Diagnostic{LaunchDiagnostic(err)})
	}
	return failed(nil)
}

// exitFailure is the fallback diagnostic for a non-zero exit that produced
// no recognizable error message.
func exitFailure(code diag.Code, cmd procrun.Command, out procrun.Outcome) diag.Diagnostic {
	d := diag.Errorf(code, "%s exited with status %d", commandLabel(cmd), out.ExitCode)
	if line := firstLine(out.Stderr); line != "" {
		d.Message += ": " + line
	}
	if rendered := strings.TrimSpace(string(out.Stderr)); rendered != "" {
		d = d.WithRendered(rendered)
	}
	return d
}

func commandLabel(cmd procrun.Command) string {
	if len(cmd.Args) > 0 && !strings.HasPrefix(cmd.Args[0], "-") && cmd.Name == "cargo" {
		return cmd.Name + " " + cmd.Args[0]
	}
	return cmd.Name
}

func firstLine(b []byte) string {
	for _, line := range strings.Split(stripANSI(string(b)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

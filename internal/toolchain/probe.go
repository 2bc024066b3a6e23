package toolchain

import (
	"context"
	"errors"
	"strconv"

	"wasmloader/internal/procrun"
)

// ToolVersion is the result of asking one executable for its version.
type ToolVersion struct {
	Tool    string `json:"tool"`
	Command string `json:"command"`
	Version string `json:"version,omitempty"`
	// Missing is set when the executable could not be started.
	Missing bool   `json:"missing,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Probe runs `<tool> --version` for every configured tool, in a fixed
// order. A tool that cannot be launched is reported as missing; Probe only
// returns early when ctx is done.
func Probe(ctx context.Context, runner procrun.Runner, tools Tools) []ToolVersion {
	if runner == nil {
		runner = procrun.NewExec()
	}
	tools = tools.WithDefaults()
	list := []struct{ tool, command string }{
		{"cargo", tools.Cargo},
		{"wasm-gc", tools.WasmGC},
		{"wasm-bindgen", tools.WasmBindgen},
		{"wasm2es6js", tools.Wasm2ES6JS},
	}
	out := make([]ToolVersion, 0, len(list))
	for _, t := range list {
		if ctx.Err() != nil {
			break
		}
		tv := ToolVersion{Tool: t.tool, Command: t.command}
		res, err := runner.Run(ctx, procrun.Command{Name: t.command, Args: []string{"--version"}})
		switch {
		case errors.Is(err, procrun.ErrLaunch):
			tv.Missing = true
		case err != nil:
			tv.Error = err.Error()
		case res.ExitCode != 0:
			tv.Error = firstLine(res.Stderr)
			if tv.Error == "" {
				tv.Error = "exit status " + strconv.Itoa(res.ExitCode)
			}
		default:
			tv.Version = firstLine(res.Stdout)
		}
		out = append(out, tv)
	}
	return out
}

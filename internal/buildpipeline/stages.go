package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wasmloader/internal/artifact"
	"wasmloader/internal/config"
	"wasmloader/internal/diag"
	"wasmloader/internal/procrun"
	"wasmloader/internal/toolchain"
	"wasmloader/internal/trace"
)

// stageRun carries one build through the artifact stages:
// validate, reduce, bindgen, shim. Each stage reads the previous binary and
// produces new artifacts; nothing already produced is modified.
type stageRun struct {
	p       *Pipeline
	cfg     config.Config
	sink    ProgressSink
	label   string
	res     *Result
	bag     *diag.Bag
	scratch string
}

// stageOutcome is what a stage body reports back to stage().
type stageOutcome struct {
	ok          bool
	diagnostics []diag.Diagnostic
	err         error
}

func (r *stageRun) run(ctx context.Context, primary artifact.Artifact, drv toolchain.Result) ([]artifact.Artifact, bool, error) {
	cur := primary
	curPath := drv.Binary.Path

	if r.cfg.ValidateBinary {
		ok, err := r.stage(ctx, StageValidate, func(ctx context.Context) stageOutcome {
			return r.inspect(ctx, cur, filepath.Base(curPath))
		})
		if !ok {
			return nil, false, err
		}
	} else {
		r.skip(StageValidate)
	}

	if r.cfg.Mode == config.ModeCargoWeb {
		// cargo-web already reduced the binary and generated its own glue.
		r.skip(StageReduce, StageBindgen, StageShim)
		data, err := os.ReadFile(drv.GluePath)
		if err != nil {
			r.bag.Add(diag.Errorf(diag.ArtifactMissing, "failed to read cargo-web glue: %v", err))
			return nil, false, nil
		}
		return []artifact.Artifact{cur, artifact.New(artifact.GlueSource, cur.Name, ".js", data)}, true, nil
	}

	var glue, shim *artifact.Artifact

	if r.cfg.GC {
		ok, err := r.stage(ctx, StageReduce, func(ctx context.Context) stageOutcome {
			out, res := r.pass(ctx, StageReduce, r.p.GC, curPath)
			if !res.ok {
				return res
			}
			data, res := r.read(StageReduce, out.Binary)
			if !res.ok {
				return res
			}
			next := cur.Derive(artifact.ReducedBinary, ".wasm", data)
			if res := r.recheck(ctx, next, out.Binary); !res.ok {
				return res
			}
			cur, curPath = next, out.Binary
			return stageOutcome{ok: true}
		})
		if !ok {
			return nil, false, err
		}
	} else {
		r.skip(StageReduce)
	}

	if r.cfg.Bindgen {
		ok, err := r.stage(ctx, StageBindgen, func(ctx context.Context) stageOutcome {
			out, res := r.pass(ctx, StageBindgen, r.p.Bindgen, curPath)
			if !res.ok {
				return res
			}
			binData, res := r.read(StageBindgen, out.Binary)
			if !res.ok {
				return res
			}
			glueData, res := r.read(StageBindgen, out.Glue)
			if !res.ok {
				return res
			}
			next := cur.Derive(cur.Kind, ".wasm", binData)
			if res := r.recheck(ctx, next, out.Binary); !res.ok {
				return res
			}
			g := artifact.New(artifact.GlueSource, cur.Name, ".js", glueData)
			cur, curPath, glue = next, out.Binary, &g
			return stageOutcome{ok: true}
		})
		if !ok {
			return nil, false, err
		}
	} else {
		r.skip(StageBindgen)
	}

	if r.cfg.ESShim {
		ok, err := r.stage(ctx, StageShim, func(ctx context.Context) stageOutcome {
			out, res := r.pass(ctx, StageShim, r.p.Shim, curPath)
			if !res.ok {
				return res
			}
			data, res := r.read(StageShim, out.Shim)
			if !res.ok {
				return res
			}
			s := artifact.New(artifact.ShimSource, cur.Name, ".js", data)
			shim = &s
			return stageOutcome{ok: true}
		})
		if !ok {
			return nil, false, err
		}
	} else {
		r.skip(StageShim)
	}

	arts := []artifact.Artifact{cur}
	if glue != nil {
		arts = append(arts, *glue)
	}
	if shim != nil {
		arts = append(arts, *shim)
	}
	return arts, true, nil
}

// stage wraps body with progress events, a trace span and timing.
// Diagnostics of a stage are appended after everything reported before it.
func (r *stageRun) stage(ctx context.Context, stage Stage, body func(context.Context) stageOutcome) (bool, error) {
	start := time.Now()
	emitStage(r.sink, r.label, stage, StatusWorking, nil, 0)
	stageCtx, span := trace.Start(ctx, trace.ScopeStage, "stage:"+string(stage))
	out := body(stageCtx)
	elapsed := time.Since(start)
	r.res.Timings.Set(stage, elapsed)
	r.bag.Extend(out.diagnostics)
	if !out.ok {
		err := out.err
		if err == nil {
			err = fmt.Errorf("%s stage failed", stage)
		}
		span.Fail(err)
		emitStage(r.sink, r.label, stage, StatusError, err, elapsed)
		return false, out.err
	}
	span.End("")
	emitStage(r.sink, r.label, stage, StatusDone, nil, elapsed)
	return true, nil
}

func (r *stageRun) skip(stages ...Stage) {
	for _, s := range stages {
		emitStage(r.sink, r.label, s, StatusSkipped, nil, 0)
	}
}

// pass runs one post-pass driver in a fresh scratch directory.
func (r *stageRun) pass(ctx context.Context, stage Stage, pass toolchain.Pass, input string) (toolchain.PassOutputs, stageOutcome) {
	outDir := filepath.Join(r.scratch, string(stage))
	if err := os.RemoveAll(outDir); err != nil {
		return toolchain.PassOutputs{}, failStage("failed to clear %s: %v", outDir, err)
	}
	res, err := pass.Run(ctx, toolchain.PassInput{
		ProjectDir: r.res.ProjectDir,
		Input:      input,
		OutDir:     outDir,
		OutName:    artifact.SafeName(r.res.Module),
		Target:     r.cfg.Target,
	})
	if err != nil {
		if errors.Is(err, procrun.ErrLaunch) {
			return toolchain.PassOutputs{}, stageOutcome{diagnostics: res.Diagnostics, err: fmt.Errorf("%w: %w", ErrToolchainLaunch, err)}
		}
		return toolchain.PassOutputs{}, stageOutcome{diagnostics: res.Diagnostics, err: fmt.Errorf("%s: %w", stage, err)}
	}
	if !res.Success {
		ds := res.Diagnostics
		if !hasCode(ds, diag.StageFailure) {
			ds = append(ds, diag.Errorf(diag.StageFailure, "%s stage failed (%s)", stage, pass.Tool()))
		}
		return toolchain.PassOutputs{}, stageOutcome{diagnostics: ds}
	}
	return res.Outputs, stageOutcome{ok: true, diagnostics: res.Diagnostics}
}

func (r *stageRun) read(stage Stage, path string) ([]byte, stageOutcome) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failStage("failed to read %s output: %v", stage, err)
	}
	return data, stageOutcome{ok: true}
}

func (r *stageRun) inspect(ctx context.Context, a artifact.Artifact, name string) stageOutcome {
	inspect := r.p.Inspect
	if inspect == nil {
		return stageOutcome{ok: true}
	}
	info, err := inspect(ctx, a.Data)
	if err != nil {
		return stageOutcome{diagnostics: []diag.Diagnostic{diag.Errorf(diag.InvalidBinary, "%s: %v", name, err)}}
	}
	r.res.Exports = info.ExportNames()
	return stageOutcome{ok: true}
}

// recheck validates a binary produced by a pass when validation is enabled.
func (r *stageRun) recheck(ctx context.Context, a artifact.Artifact, path string) stageOutcome {
	if !r.cfg.ValidateBinary {
		return stageOutcome{ok: true}
	}
	return r.inspect(ctx, a, filepath.Base(path))
}

func failStage(format string, args ...any) stageOutcome {
	d := diag.Errorf(diag.StageFailure, format, args...)
	return stageOutcome{diagnostics: []diag.Diagnostic{d}}
}

func hasCode(ds []diag.Diagnostic, code diag.Code) bool {
	for _, d := range ds {
		if d.Code == code {
			return true
		}
	}
	return false
}

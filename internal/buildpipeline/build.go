// Package buildpipeline orchestrates compiling a Rust crate into wasm assets:
// project resolution, the primary toolchain, the post-pass stages and asset
// emission.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"wasmloader/internal/artifact"
	"wasmloader/internal/config"
	"wasmloader/internal/diag"
	"wasmloader/internal/emit"
	"wasmloader/internal/logging"
	"wasmloader/internal/procrun"
	"wasmloader/internal/project"
	"wasmloader/internal/toolchain"
	"wasmloader/internal/trace"
	"wasmloader/internal/wasminspect"
)

// Request is one compilation request.
type Request struct {
	// SourcePath is the Rust source module (or any path inside the crate).
	SourcePath string
	// Module is the logical module name; empty means the package name.
	Module   string
	Config   config.Config
	Progress ProgressSink
}

// Result is the outcome of Build. A failed result carries no artifacts and
// no binary reference; a successful one starts Artifacts with exactly one
// binary-class artifact.
type Result struct {
	Diagnostics []diag.Diagnostic
	Success     bool
	ProjectDir  string
	Module      string
	Binary      toolchain.Binary
	Metadata    toolchain.Metadata
	Artifacts   []artifact.Artifact
	// Exports lists the final binary's exports when validation ran.
	Exports []string
	Timings Timings
}

// Options configures New.
type Options struct {
	Runner procrun.Runner
	Tools  toolchain.Tools
	Locks  *ProjectLocks
}

// Pipeline holds the drivers and passes used by every build. Fields may be
// replaced before the first build.
type Pipeline struct {
	Standard toolchain.Driver
	CargoWeb toolchain.Driver
	GC       toolchain.Pass
	Bindgen  toolchain.Pass
	Shim     toolchain.Pass
	Inspect  func(ctx context.Context, data []byte) (wasminspect.Info, error)
	Locks    *ProjectLocks

	runner procrun.Runner
	tools  toolchain.Tools
}

// New wires the default drivers around opts.Runner.
func New(opts Options) *Pipeline {
	runner := opts.Runner
	if runner == nil {
		runner = procrun.NewExec()
	}
	tools := opts.Tools.WithDefaults()
	locks := opts.Locks
	if locks == nil {
		locks = NewProjectLocks()
	}
	gc, bindgen, shim := tools.Passes(runner)
	return &Pipeline{
		Standard: toolchain.NewCargoDriver(runner, tools),
		CargoWeb: toolchain.NewCargoWebDriver(runner, tools),
		GC:       gc,
		Bindgen:  bindgen,
		Shim:     shim,
		Inspect:  wasminspect.Inspect,
		Locks:    locks,
		runner:   runner,
		tools:    tools,
	}
}

var errCompileFailed = errors.New("compilation failed")

// Build compiles req and runs the enabled stages. The returned error is
// reserved for failures outside the toolchain's control (no project, launch
// failure, cancellation, invalid configuration); compile and stage failures
// are reported through Result.
func (p *Pipeline) Build(ctx context.Context, req Request) (res Result, err error) {
	cfg := req.Config.Normalized()
	if err := cfg.Validate(); err != nil {
		return res, fmt.Errorf("invalid configuration: %w", err)
	}
	label := progressLabel(req)
	sink := req.Progress
	res.Module = req.Module
	bag := diag.NewBag(8)
	defer func() { res.Diagnostics = bag.Items() }()

	resolveStart := time.Now()
	emitStage(sink, label, StageResolve, StatusWorking, nil, 0)
	manifestPath, found, err := project.FindManifest(req.SourcePath, cfg.Boundary)
	if err != nil {
		emitStage(sink, label, StageResolve, StatusError, err, 0)
		return res, fmt.Errorf("resolve project: %w", err)
	}
	if !found {
		bag.Add(diag.Errorf(diag.ProjectNotFound, "no %s found for %s", project.ManifestName, req.SourcePath))
		err = fmt.Errorf("%w: %s", ErrProjectNotFound, req.SourcePath)
		emitStage(sink, label, StageResolve, StatusError, err, time.Since(resolveStart))
		return res, err
	}
	res.ProjectDir = filepath.Dir(manifestPath)
	manifest, err := project.LoadManifest(manifestPath)
	if err != nil {
		bag.Add(diag.NewError(diag.ManifestInvalid, err.Error()).WithSpan(diag.Span{File: manifestPath}))
		emitStage(sink, label, StageResolve, StatusError, err, time.Since(resolveStart))
		return res, nil
	}
	bag.Extend(manifest.Diagnostics())
	if res.Module == "" {
		res.Module = manifest.PackageName()
	}
	res.Timings.Set(StageResolve, time.Since(resolveStart))
	emitStage(sink, label, StageResolve, StatusDone, nil, res.Timings.Duration(StageResolve))

	release, err := p.locks().Acquire(ctx, res.ProjectDir)
	if err != nil {
		return res, fmt.Errorf("wait for %s: %w", res.ProjectDir, err)
	}
	defer release()

	ctx, span := trace.Start(ctx, trace.ScopeDriver, "build:"+res.Module)
	defer func() {
		span.Set("success", strconv.FormatBool(res.Success)).End(cfg.Profile())
	}()

	log := logging.L().With(zap.String("module", res.Module), zap.String("project", res.ProjectDir))
	log.Debug("build started", zap.String("mode", string(cfg.Mode)), zap.Bool("release", cfg.Release))

	drv := p.driverFor(cfg.Mode)
	inv := toolchain.Invocation{
		ProjectDir: res.ProjectDir,
		SourcePath: req.SourcePath,
		Config:     cfg,
		OnState: func(s toolchain.State) {
			log.Debug("driver state", zap.String("driver", drv.Name()), zap.Stringer("state", s))
		},
	}
	compileStart := time.Now()
	emitStage(sink, label, StageCompile, StatusWorking, nil, 0)
	compileCtx, compileSpan := trace.Start(ctx, trace.ScopeStage, "stage:"+string(StageCompile))
	drvRes, err := drv.Invoke(compileCtx, inv)
	if err != nil {
		compileSpan.Fail(err)
	} else {
		compileSpan.End(drvRes.State.String())
	}
	res.Timings.Set(StageCompile, time.Since(compileStart))
	if err != nil {
		if errors.Is(err, procrun.ErrLaunch) {
			// A launch failure is reported alone.
			bag = diag.NewBag(len(drvRes.Diagnostics))
			bag.Extend(drvRes.Diagnostics)
			err = fmt.Errorf("%w: %w", ErrToolchainLaunch, err)
		} else {
			bag.Extend(drvRes.Diagnostics)
			err = fmt.Errorf("compile %s: %w", res.Module, err)
		}
		emitStage(sink, label, StageCompile, StatusError, err, res.Timings.Duration(StageCompile))
		return res, err
	}
	bag.Extend(drvRes.Diagnostics)
	if !drvRes.Success {
		log.Info("compile failed", zap.Int("diagnostics", bag.Len()))
		emitStage(sink, label, StageCompile, StatusError, errCompileFailed, res.Timings.Duration(StageCompile))
		return res, nil
	}
	data, readErr := os.ReadFile(drvRes.Binary.Path)
	if readErr != nil {
		bag.Add(diag.Errorf(diag.ArtifactMissing, "failed to read compiled binary: %v", readErr))
		emitStage(sink, label, StageCompile, StatusError, readErr, res.Timings.Duration(StageCompile))
		return res, nil
	}
	emitStage(sink, label, StageCompile, StatusDone, nil, res.Timings.Duration(StageCompile))

	run := &stageRun{
		p:       p,
		cfg:     cfg,
		sink:    sink,
		label:   label,
		res:     &res,
		bag:     bag,
		scratch: filepath.Join(res.ProjectDir, "target", "wasmloader", artifact.SafeName(res.Module)),
	}
	primary := artifact.New(artifact.PrimaryBinary, res.Module, ".wasm", data)
	arts, ok, err := run.run(ctx, primary, drvRes)
	if !ok {
		log.Info("stage failed", zap.Int("diagnostics", bag.Len()))
		return res, err
	}
	res.Success = true
	res.Binary = drvRes.Binary
	res.Metadata = drvRes.Metadata
	res.Artifacts = arts
	log.Info("build finished",
		zap.Int("artifacts", len(arts)),
		zap.Int("diagnostics", bag.Len()),
		zap.Duration("elapsed", res.Timings.Total()),
	)
	return res, nil
}

// Load builds req and maps the result onto an emit.Payload. Assets and the
// module source are only present when the build succeeded.
func (p *Pipeline) Load(ctx context.Context, req Request) (emit.Payload, Result, error) {
	res, err := p.Build(ctx, req)
	payload := emit.Payload{
		Module:      res.Module,
		Success:     res.Success,
		Diagnostics: res.Diagnostics,
	}
	if err != nil || !res.Success {
		return payload, res, err
	}

	label := progressLabel(req)
	start := time.Now()
	emitStage(req.Progress, label, StageEmit, StatusWorking, nil, 0)
	_, span := trace.Start(ctx, trace.ScopeStage, "stage:"+string(StageEmit))
	set, emitErr := emit.Emit(res.Artifacts, req.Config.Normalized(), res.Module, emit.WithExports(res.Exports))
	span.Fail(emitErr)
	res.Timings.Set(StageEmit, time.Since(start))
	if emitErr != nil {
		res.Success = false
		res.Artifacts = nil
		res.Binary = toolchain.Binary{}
		res.Metadata = toolchain.Metadata{}
		res.Diagnostics = append(res.Diagnostics, diag.Errorf(diag.EmitFailure, "%v", emitErr))
		payload.Success = false
		payload.Diagnostics = res.Diagnostics
		emitStage(req.Progress, label, StageEmit, StatusError, emitErr, res.Timings.Duration(StageEmit))
		return payload, res, nil
	}
	payload.Assets = set.Assets
	payload.ModuleSource = set.ModuleSource
	emitStage(req.Progress, label, StageEmit, StatusDone, nil, res.Timings.Duration(StageEmit))
	return payload, res, nil
}

// Clean runs `cargo clean` in the project enclosing path.
func (p *Pipeline) Clean(ctx context.Context, path, boundary string) (string, []diag.Diagnostic, error) {
	root, ok, err := project.FindRoot(path, boundary)
	if err != nil {
		return "", nil, fmt.Errorf("resolve project: %w", err)
	}
	if !ok {
		return "", []diag.Diagnostic{diag.Errorf(diag.ProjectNotFound, "no %s found for %s", project.ManifestName, path)},
			fmt.Errorf("%w: %s", ErrProjectNotFound, path)
	}
	release, err := p.locks().Acquire(ctx, root)
	if err != nil {
		return root, nil, err
	}
	defer release()
	ds, err := toolchain.Clean(ctx, p.runnerOrDefault(), p.tools, root)
	if errors.Is(err, procrun.ErrLaunch) {
		err = fmt.Errorf("%w: %w", ErrToolchainLaunch, err)
	}
	return root, ds, err
}

func (p *Pipeline) driverFor(mode config.Mode) toolchain.Driver {
	if mode == config.ModeCargoWeb {
		return p.CargoWeb
	}
	return p.Standard
}

// sharedLocks serves pipelines built without New.
var sharedLocks = NewProjectLocks()

func (p *Pipeline) locks() *ProjectLocks {
	if p.Locks == nil {
		return sharedLocks
	}
	return p.Locks
}

func (p *Pipeline) runnerOrDefault() procrun.Runner {
	if p.runner == nil {
		return procrun.NewExec()
	}
	return p.runner
}

func progressLabel(req Request) string {
	if req.Module != "" {
		return req.Module
	}
	return req.SourcePath
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"wasmloader/internal/artifact"
	"wasmloader/internal/buildpipeline"
	"wasmloader/internal/config"
	"wasmloader/internal/diagfmt"
	"wasmloader/internal/emit"
	"wasmloader/internal/project"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] <path>...",
	Short: "Build Rust crates into wasm assets",
	Long: `Build compiles the crate enclosing each path and emits the named assets and
the ES module source. Settings come from wasmloader.toml or wasmloader.yaml in
the project root; flags override them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	addBuildFlags(buildCmd.Flags())
}

func addBuildFlags(f *pflag.FlagSet) {
	f.Bool("release", false, "build with the release profile")
	f.Bool("gc", false, "reduce the binary with wasm-gc")
	f.Bool("bindgen", false, "generate bindings with wasm-bindgen")
	f.Bool("es-shim", false, "wrap bindgen output with wasm2es6js (requires --bindgen)")
	f.Bool("cargo-web", false, "build with cargo-web instead of cargo")
	f.String("name", config.DefaultName, "output name template ([name], [hash], [hash:N], [ext])")
	f.String("target", string(config.TargetWeb), "JavaScript environment (web|node)")
	f.Bool("validate", true, "validate the compiled binary and list its exports")
	f.StringArray("cargo-arg", nil, "extra argument passed to the build command (repeatable)")
	f.String("boundary", "", "stop the Cargo.toml search at this directory")
	f.String("config", "", "config file (default: wasmloader.toml or wasmloader.yaml in the project root)")
	f.String("module", "", "logical module name (single path only)")
	f.String("out-dir", "", "write assets and the module source into this directory")
	f.String("format", "pretty", "output format (pretty|json|msgpack)")
	f.String("ui", "auto", "progress display (auto|on|off)")
	f.Int("jobs", 0, "maximum concurrent builds (0 = one per path)")
}

type buildOptions struct {
	configPath string
	module     string
	outDir     string
	format     string
	ui         uiMode
	jobs       int
}

type buildOutcome struct {
	label   string
	payload emit.Payload
	result  buildpipeline.Result
	err     error
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, err := readBuildOptions(cmd.Flags())
	if err != nil {
		return err
	}
	if opts.module != "" && len(args) > 1 {
		return errors.New("--module applies to a single path")
	}

	requests := make([]buildpipeline.Request, len(args))
	labels := make([]string, len(args))
	for i, path := range args {
		cfg, err := resolveConfig(cmd.Flags(), path, opts.configPath)
		if err != nil {
			return err
		}
		requests[i] = buildpipeline.Request{SourcePath: path, Module: opts.module, Config: cfg}
		labels[i] = path
		if opts.module != "" {
			labels[i] = opts.module
		}
	}

	pipeline := buildpipeline.New(buildpipeline.Options{})
	outcomes := make([]buildOutcome, len(requests))
	run := func(ctx context.Context, sink buildpipeline.ProgressSink) error {
		return buildAll(ctx, pipeline, requests, labels, outcomes, opts.jobs, sink)
	}
	if shouldUseTUI(opts.ui, opts.format != "pretty") {
		err = runWithUI(cmd.Context(), "wasmloader build", labels, run)
	} else {
		err = run(cmd.Context(), nil)
	}
	if err != nil {
		return err
	}
	return reportBuilds(cmd, opts, outcomes)
}

func readBuildOptions(flags *pflag.FlagSet) (buildOptions, error) {
	var (
		opts buildOptions
		err  error
	)
	if opts.configPath, err = flags.GetString("config"); err != nil {
		return opts, err
	}
	if opts.module, err = flags.GetString("module"); err != nil {
		return opts, err
	}
	if opts.outDir, err = flags.GetString("out-dir"); err != nil {
		return opts, err
	}
	if opts.format, err = flags.GetString("format"); err != nil {
		return opts, err
	}
	opts.format = strings.ToLower(opts.format)
	switch opts.format {
	case "pretty", string(emit.FormatJSON), string(emit.FormatMsgpack):
	default:
		return opts, fmt.Errorf("unsupported format %q (must be pretty, json or msgpack)", opts.format)
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return opts, err
	}
	if opts.ui, err = readUIMode(uiValue); err != nil {
		return opts, err
	}
	if opts.jobs, err = flags.GetInt("jobs"); err != nil {
		return opts, err
	}
	if opts.jobs < 0 {
		return opts, fmt.Errorf("--jobs must not be negative")
	}
	return opts, nil
}

// resolveConfig loads the project's config file (or explicit) and applies
// every flag the user set on top of it.
func resolveConfig(flags *pflag.FlagSet, path, explicit string) (config.Config, error) {
	cfg := config.Default()
	switch {
	case explicit != "":
		loaded, err := config.LoadFile(explicit)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	default:
		root, ok, err := project.FindRoot(path, "")
		if err != nil {
			return config.Config{}, err
		}
		if ok {
			file, found, err := config.FindFile(root)
			if err != nil {
				return config.Config{}, err
			}
			if found {
				if cfg, err = config.LoadFile(file); err != nil {
					return config.Config{}, err
				}
			}
		}
	}
	if err := applyBuildFlags(flags, &cfg); err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func applyBuildFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	bools := []struct {
		name string
		dst  *bool
	}{
		{"release", &cfg.Release},
		{"gc", &cfg.GC},
		{"bindgen", &cfg.Bindgen},
		{"es-shim", &cfg.ESShim},
		{"validate", &cfg.ValidateBinary},
	}
	for _, b := range bools {
		if !flags.Changed(b.name) {
			continue
		}
		v, err := flags.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = v
	}
	if flags.Changed("cargo-web") {
		on, err := flags.GetBool("cargo-web")
		if err != nil {
			return err
		}
		cfg.Mode = config.ModeStandard
		if on {
			cfg.Mode = config.ModeCargoWeb
		}
	}
	if flags.Changed("name") {
		v, err := flags.GetString("name")
		if err != nil {
			return err
		}
		cfg.Name = v
	}
	if flags.Changed("target") {
		v, err := flags.GetString("target")
		if err != nil {
			return err
		}
		cfg.Target = config.Target(strings.ToLower(v))
	}
	if flags.Changed("boundary") {
		v, err := flags.GetString("boundary")
		if err != nil {
			return err
		}
		cfg.Boundary = v
	}
	if flags.Changed("cargo-arg") {
		v, err := flags.GetStringArray("cargo-arg")
		if err != nil {
			return err
		}
		cfg.Args = v
	}
	return nil
}

// buildAll runs every request, at most jobs at a time. Build failures are
// recorded in outcomes; only cancellation aborts the group.
func buildAll(ctx context.Context, p *buildpipeline.Pipeline, reqs []buildpipeline.Request, labels []string, outcomes []buildOutcome, jobs int, sink buildpipeline.ProgressSink) error {
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, req := range reqs {
		req.Progress = sink
		g.Go(func() error {
			payload, res, err := p.Load(gctx, req)
			outcomes[i] = buildOutcome{label: labels[i], payload: payload, result: res, err: err}
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func reportBuilds(cmd *cobra.Command, opts buildOptions, outcomes []buildOutcome) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	root := cmd.Root().PersistentFlags()
	quiet, _ := root.GetBool("quiet")
	showTimings, _ := root.GetBool("timings")
	maxDiagnostics, _ := root.GetInt("max-diagnostics")
	useColor, err := colorEnabled(cmd)
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.err != nil || !o.payload.Success {
			failed++
		}
		if opts.format == "pretty" {
			if err := reportPretty(out, o, diagfmt.PrettyOpts{
				Color:   useColor,
				BaseDir: o.result.ProjectDir,
				Summary: !quiet,
			}, maxDiagnostics, quiet); err != nil {
				return err
			}
		} else if err := o.payload.Encode(out, emit.Format(opts.format)); err != nil {
			return err
		}
		if o.err != nil {
			fmt.Fprintf(errOut, "error: %s: %v\n", o.label, o.err)
		}
		if opts.outDir != "" && o.err == nil && o.payload.Success {
			written, err := writeOutputs(opts.outDir, o.payload)
			if err != nil {
				return fmt.Errorf("%s: %w", o.label, err)
			}
			if !quiet && opts.format == "pretty" {
				for _, path := range written {
					fmt.Fprintf(out, "wrote %s\n", path)
				}
			}
		}
		if showTimings {
			if err := printStageTimings(errOut, o.label, o.result.Timings); err != nil {
				return err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d builds failed", failed, len(outcomes))
	}
	return nil
}

func reportPretty(out io.Writer, o buildOutcome, opts diagfmt.PrettyOpts, maxDiagnostics int, quiet bool) error {
	ds := o.payload.Diagnostics
	if maxDiagnostics > 0 && len(ds) > maxDiagnostics {
		ds = ds[:maxDiagnostics]
	}
	if len(ds) > 0 {
		if err := diagfmt.Pretty(out, ds, opts); err != nil {
			return err
		}
	}
	if quiet {
		return nil
	}
	status := "built"
	if o.err != nil || !o.payload.Success {
		status = "failed"
	}
	_, err := fmt.Fprintf(out, "%s %s (%d assets)\n", status, o.label, len(o.payload.Assets))
	return err
}

// writeOutputs writes every asset and the module source into dir. The module
// source is named after the module with an .mjs extension.
func writeOutputs(dir string, p emit.Payload) ([]string, error) {
	sourceName := artifact.SafeName(p.Module) + ".mjs"
	written := make([]string, 0, len(p.Assets)+1)
	for _, a := range p.Assets {
		if a.Name == sourceName {
			return nil, fmt.Errorf("asset %q collides with the module source", a.Name)
		}
	}
	for _, a := range p.Assets {
		rel := a.Path
		if rel == "" {
			rel = filepath.FromSlash(a.Name)
		}
		path := filepath.Join(dir, rel)
		if err := writeFile(path, a.Content); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	path := filepath.Join(dir, sourceName)
	if err := writeFile(path, []byte(p.ModuleSource)); err != nil {
		return nil, err
	}
	return append(written, path), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %q: %w", filepath.Dir(path), err)
	}
	// #nosec G306 -- emitted assets are meant to be served
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

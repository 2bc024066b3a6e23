// Package trace records spans for build requests, pipeline stages and
// toolchain subprocesses.
//
// Toolchain builds are slow and occasionally hang inside cargo or a post-pass
// tool. A trace shows which subprocess was running and for how long.
//
// # Usage
//
//	wasmloader build --trace=- --trace-level=detail ./src/lib.rs
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelPhase: build requests only
//   - LevelDetail: build requests and pipeline stages
//   - LevelDebug: everything, including each subprocess
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopeStage, "stage:bindgen")
//	if err := run(ctx); err != nil {
//		span.Fail(err)
//		return err
//	}
//	span.End("")
package trace

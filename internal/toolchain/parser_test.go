package toolchain

import (
	"strings"
	"testing"

	"wasmloader/internal/diag"
)

const cargoStream = `{"reason":"compiler-artifact","package_id":"dep 0.1.0","manifest_path":"/dep/Cargo.toml","target":{"kind":["lib"],"name":"dep"},"filenames":["/p/target/libdep.rlib"]}
{"reason":"compiler-message","package_id":"demo 0.1.0","manifest_path":"/p/Cargo.toml","message":{"message":"unused variable: ` + "`a`" + `","code":{"code":"unused_variables","explanation":null},"level":"warning","spans":[{"file_name":"src/lib.rs","line_start":2,"line_end":2,"column_start":9,"column_end":10,"is_primary":true}],"rendered":"warning: unused variable\n"}}
this line is not json
{"reason":"compiler-message","message":{"message":"cannot find value ` + "`x`" + ` in this scope","code":{"code":"E0425"},"level":"error","spans":[{"file_name":"src/lib.rs","line_start":3,"line_end":3,"column_start":5,"column_end":6,"is_primary":false},{"file_name":"src/lib.rs","line_start":4,"line_end":4,"column_start":7,"column_end":8,"is_primary":true}],"rendered":null}}
{"reason":"compiler-message","message":{"message":"aborting due to 1 previous error","code":null,"level":"error","spans":[],"rendered":"error: aborting due to 1 previous error\n"}}
{"reason":"compiler-message","message":{"message":"For more information about this error, try ` + "`rustc --explain E0425`" + `.","code":null,"level":"failure-note","spans":[]}}
{"reason":"compiler-message","message":{"message":"some help","level":"help","spans":[]}}
{"reason":"compiler-artifact","package_id":"demo 0.1.0","manifest_path":"/p/Cargo.toml","target":{"kind":["cdylib"],"name":"demo"},"filenames":["/p/target/wasm32-unknown-unknown/release/demo.wasm"]}
{"reason":"build-finished","success":false}
{"truncated": `

func TestJSONStreamParser(t *testing.T) {
	st := JSONStreamParser{}.ParseStream(cargoStream)
	if len(st.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d: %+v", len(st.Diagnostics), st.Diagnostics)
	}
	w, e := st.Diagnostics[0], st.Diagnostics[1]
	if w.Severity != diag.SevWarning || w.Code != diag.CompilerMessage || w.ToolCode != "unused_variables" {
		t.Fatalf("unexpected warning %+v", w)
	}
	if w.Span == nil || w.Span.String() != "src/lib.rs:2:9" || w.Span.EndColumn != 10 {
		t.Fatalf("unexpected warning span %+v", w.Span)
	}
	if w.Rendered != "warning: unused variable" {
		t.Fatalf("rendered = %q", w.Rendered)
	}
	if e.Severity != diag.SevError || e.ToolCode != "E0425" || e.Span == nil || e.Span.Line != 4 {
		t.Fatalf("unexpected error %+v (span %+v)", e, e.Span)
	}
	if len(st.Artifacts) != 2 || st.Artifacts[1].TargetName != "demo" {
		t.Fatalf("artifacts = %+v", st.Artifacts)
	}
	if !st.Finished || st.BuildSuccess {
		t.Fatalf("finished=%v success=%v", st.Finished, st.BuildSuccess)
	}
}

func TestJSONStreamParserLongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	line := `{"reason":"compiler-message","message":{"message":"` + long + `","level":"warning","spans":[]}}`
	ds := JSONStreamParser{}.Parse(line + "\n")
	if len(ds) != 1 || len(ds[0].Message) != len(long) {
		t.Fatalf("long line lost: %d diagnostics", len(ds))
	}
}

func TestJSONStreamParserNegativePosition(t *testing.T) {
	line := `{"reason":"compiler-message","message":{"message":"m","level":"error","spans":[{"file_name":"a.rs","line_start":-1,"line_end":1,"column_start":1,"column_end":1,"is_primary":true}]}}`
	ds := JSONStreamParser{}.Parse(line)
	if len(ds) != 1 || ds[0].Span == nil || ds[0].Span.Line != 0 || ds[0].Span.EndLine != 1 {
		t.Fatalf("unexpected %+v", ds)
	}
}

const rustcText = "   Compiling demo v0.1.0 (/p)\n" +
	"\x1b[1m\x1b[33mwarning\x1b[0m: unused variable: `a`\n" +
	" --> src/lib.rs:2:9\n" +
	"  |\n" +
	"2 |     let a = 1;\n" +
	"  |         ^ help: if this is intentional, prefix it with an underscore: `_a`\n" +
	"  |\n" +
	"  = note: `#[warn(unused_variables)]` on by default\n" +
	"\n" +
	"error[E0425]: cannot find value `x` in this scope\n" +
	" --> src/lib.rs:3:5\n" +
	"  |\n" +
	"3 |     x\n" +
	"  |     ^ not found in this scope\n" +
	"error: linking failed\n" +
	"\n" +
	"error: aborting due to 2 previous errors; 1 warning emitted\n" +
	"\n" +
	"warning: `demo` (lib) generated 1 warning\n" +
	"error: could not compile `demo` (lib) due to 2 previous errors\n" +
	"some trailing garbage that belongs to nothing"

func TestTextBlockParser(t *testing.T) {
	ds := TextBlockParser{}.Parse(rustcText)
	if len(ds) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d: %+v", len(ds), ds)
	}
	if ds[0].Severity != diag.SevWarning || ds[0].Message != "unused variable: `a`" || ds[0].Span.String() != "src/lib.rs:2:9" {
		t.Fatalf("unexpected first %+v", ds[0])
	}
	if !strings.Contains(ds[0].Rendered, "= note:") {
		t.Fatalf("rendered block lost its note: %q", ds[0].Rendered)
	}
	if ds[1].Severity != diag.SevError || ds[1].ToolCode != "E0425" || ds[1].Span.String() != "src/lib.rs:3:5" {
		t.Fatalf("unexpected second %+v", ds[1])
	}
	if ds[2].Message != "linking failed" || ds[2].Span != nil {
		t.Fatalf("heading must start a new block: %+v", ds[2])
	}
}

func TestTextBlockParserCode(t *testing.T) {
	ds := TextBlockParser{Code: diag.StageFailure}.Parse("error: failed to read input\n")
	if len(ds) != 1 || ds[0].Code != diag.StageFailure {
		t.Fatalf("unexpected %+v", ds)
	}
	if got := (TextBlockParser{}).Parse("nothing to see\n\n"); len(got) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", got)
	}
}

func TestParserOrderIsStable(t *testing.T) {
	a := TextBlockParser{}.Parse(rustcText)
	b := TextBlockParser{}.Parse(rustcText)
	if diag.FormatShort(a, "") != diag.FormatShort(b, "") {
		t.Fatal("parse order must be deterministic")
	}
}

package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"wasmloader/internal/diag"
)

func sample() []diag.Diagnostic {
	return []diag.Diagnostic{
		diag.NewWarning(diag.CompilerMessage, "unused variable: `a`").
			WithSpan(diag.Span{File: "/home/user/crate/src/lib.rs", Line: 2, Column: 9, EndLine: 2, EndColumn: 10}).
			WithRendered("warning: unused variable: `a`\n --> src/lib.rs:2:9\n"),
		diag.NewError(diag.CompilerMessage, "cannot find value `x` in this scope").
			WithSpan(diag.Span{File: "/home/user/crate/src/lib.rs", Line: 3, Column: 5}).
			WithToolCode("E0425"),
		diag.Errorf(diag.CompileFailure, "cargo build exited with status 101"),
	}
}

func TestPathModes(t *testing.T) {
	tests := []struct {
		name string
		mode PathMode
		want string
	}{
		{name: "auto", mode: PathModeAuto, want: "src/lib.rs:2:9: WARNING"},
		{name: "absolute", mode: PathModeAbsolute, want: "/home/user/crate/src/lib.rs:2:9:"},
		{name: "relative", mode: PathModeRelative, want: "src/lib.rs:2:9:"},
		{name: "basename", mode: PathModeBasename, want: "lib.rs:2:9:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Pretty(&buf, sample(), PrettyOpts{PathMode: tt.mode, BaseDir: "/home/user/crate"}); err != nil {
				t.Fatalf("Pretty: %v", err)
			}
			lines := strings.Split(buf.String(), "\n")
			if !strings.HasPrefix(lines[0], tt.want) {
				t.Errorf("first line = %q, want prefix %q", lines[0], tt.want)
			}
		})
	}
}

func TestFormatPathOutsideBase(t *testing.T) {
	if got := formatPath("/elsewhere/lib.rs", PathModeAuto, "/home/user/crate"); got != "/elsewhere/lib.rs" {
		t.Fatalf("auto = %q", got)
	}
	if got := formatPath("src/lib.rs", PathModeRelative, "/home/user/crate"); got != "src/lib.rs" {
		t.Fatalf("relative path kept = %q", got)
	}
}

func TestPrettyOrderAndCodes(t *testing.T) {
	var buf bytes.Buffer
	if err := Pretty(&buf, sample(), PrettyOpts{Summary: true, BaseDir: "/home/user/crate"}); err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	want := strings.Join([]string{
		"src/lib.rs:2:9: WARNING TCH2002: unused variable: `a`",
		"src/lib.rs:3:5: ERROR TCH2002[E0425]: cannot find value `x` in this scope",
		"ERROR TCH2003: cargo build exited with status 101",
		"2 errors, 1 warning",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestPrettyRendered(t *testing.T) {
	var buf bytes.Buffer
	if err := Pretty(&buf, sample()[:1], PrettyOpts{ShowRendered: true}); err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	if !strings.Contains(buf.String(), "  |  --> src/lib.rs:2:9\n") {
		t.Fatalf("rendered block missing:\n%s", buf.String())
	}
}

func TestPrettyColor(t *testing.T) {
	var plain, colored bytes.Buffer
	_ = Pretty(&plain, sample(), PrettyOpts{})
	_ = Pretty(&colored, sample(), PrettyOpts{Color: true})
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatal("plain output contains escape codes")
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Fatal("colored output has no escape codes")
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sample(), JSONOpts{BaseDir: "/home/user/crate", Max: 2}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || out.Errors != 2 || out.Warnings != 1 {
		t.Fatalf("counts = %+v", out)
	}
	first := out.Diagnostics[0]
	if first.Severity != "warning" || first.Code != "TCH2002" || first.Location == nil || first.Location.File != "src/lib.rs" {
		t.Fatalf("first = %+v", first)
	}
	if first.Rendered != "" {
		t.Fatal("rendered text included without IncludeRendered")
	}
	if out.Diagnostics[1].ToolCode != "E0425" {
		t.Fatalf("tool code = %q", out.Diagnostics[1].ToolCode)
	}
}

func TestJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, nil, JSONOpts{}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"diagnostics": []`) {
		t.Fatalf("empty output = %s", buf.String())
	}
}

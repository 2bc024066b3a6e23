package emit

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"wasmloader/internal/artifact"
	"wasmloader/internal/config"
	"wasmloader/internal/diag"
)

var wasmBytes = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func binary(data []byte) artifact.Artifact {
	return artifact.New(artifact.PrimaryBinary, "demo", ".wasm", data)
}

func TestExpand(t *testing.T) {
	hash := artifact.HashBytes([]byte("x"))
	cases := []struct {
		tmpl string
		want string
	}{
		{"[name].wasm", "demo.wasm"},
		{"[name].[hash:8].wasm", "demo." + hash[:8] + ".wasm"},
		{"[hash]", hash[:DefaultHashLength]},
		{"[hash:64].[ext]", hash + ".wasm"},
		{"wasm/[name]-[hash:4].[ext]", "wasm/demo-" + hash[:4] + ".wasm"},
		{"[id]/[name].wasm", "[id]/demo.wasm"},
	}
	for _, tc := range cases {
		got, err := Expand(tc.tmpl, "demo", hash, ".wasm")
		if err != nil {
			t.Fatalf("Expand(%q): %v", tc.tmpl, err)
		}
		if got != tc.want {
			t.Fatalf("Expand(%q) = %q, want %q", tc.tmpl, got, tc.want)
		}
	}
}

func TestExpandRejects(t *testing.T) {
	hash := artifact.HashBytes(nil)
	for _, tmpl := range []string{"[hash:0]", "[hash:65]", "[name:3].wasm", "../[name].wasm", "/abs/[name].wasm", "a//b.wasm", ""} {
		if _, err := Expand(tmpl, "demo", hash, ".wasm"); !errors.Is(err, ErrTemplate) {
			t.Fatalf("Expand(%q) = %v, want ErrTemplate", tmpl, err)
		}
	}
}

func TestExpandNormalizesNFC(t *testing.T) {
	got, err := Expand("[name].wasm", "cafe\u0301", "00", ".wasm")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "caf\u00e9.wasm" {
		t.Fatalf("Expand = %q", got)
	}
}

func TestEmitStandard(t *testing.T) {
	cfg := config.Config{Release: true}.Normalized()
	set, err := Emit([]artifact.Artifact{binary(wasmBytes)}, cfg, "demo")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(set.Assets) != 1 || set.Assets[0].Kind != artifact.PrimaryBinary {
		t.Fatalf("assets = %+v", set.Assets)
	}
	name := set.Assets[0].Name
	if !regexp.MustCompile(`^demo\.[0-9a-f]{8}\.wasm$`).MatchString(name) {
		t.Fatalf("name = %q", name)
	}
	if !bytes.Equal(set.Assets[0].Content, wasmBytes) {
		t.Fatal("content changed")
	}
	for _, want := range []string{`new URL("./` + name + `"`, "export default function init(imports = {})", "instantiateStreaming"} {
		if !strings.Contains(set.ModuleSource, want) {
			t.Fatalf("module source lacks %q:\n%s", want, set.ModuleSource)
		}
	}
	if strings.Contains(set.ModuleSource, "wasmExports") {
		t.Fatal("wasmExports must be omitted when exports are unknown")
	}
}

func TestEmitDeterministicHash(t *testing.T) {
	cfg := config.Default()
	a, err := Emit([]artifact.Artifact{binary(wasmBytes)}, cfg, "demo")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	b, err := Emit([]artifact.Artifact{binary(bytes.Clone(wasmBytes))}, cfg, "demo")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if a.Assets[0].Name != b.Assets[0].Name || a.ModuleSource != b.ModuleSource {
		t.Fatal("identical bytes must give identical output")
	}
	changed := bytes.Clone(wasmBytes)
	changed[len(changed)-1] ^= 0x01
	c, err := Emit([]artifact.Artifact{binary(changed)}, cfg, "demo")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if a.Assets[0].Name == c.Assets[0].Name {
		t.Fatal("a single-byte change must change the hash")
	}
}

func TestEmitBindgenShim(t *testing.T) {
	cfg := config.Config{Bindgen: true, ESShim: true, Target: config.TargetNode}.Normalized()
	arts := []artifact.Artifact{
		artifact.New(artifact.ReducedBinary, "demo", ".wasm", wasmBytes),
		artifact.New(artifact.GlueSource, "demo", ".js", []byte("export function greet() {}\n")),
		artifact.New(artifact.ShimSource, "demo", ".js", []byte("export const booted = Promise.resolve();\n")),
	}
	set, err := Emit(arts, cfg, "demo", WithExports([]string{"greet", "memory"}))
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(set.Assets) != 3 {
		t.Fatalf("expected 3 assets, got %+v", set.Assets)
	}
	names := map[string]bool{}
	for _, a := range set.Assets {
		names[a.Name] = true
	}
	if len(names) != 3 {
		t.Fatalf("names must be distinct: %v", names)
	}
	glue, _ := set.Asset(artifact.GlueSource)
	shim, _ := set.Asset(artifact.ShimSource)
	if !regexp.MustCompile(`^demo\.glue\.[0-9a-f]{8}\.js$`).MatchString(glue.Name) ||
		!regexp.MustCompile(`^demo\.shim\.[0-9a-f]{8}\.js$`).MatchString(shim.Name) {
		t.Fatalf("glue=%q shim=%q", glue.Name, shim.Name)
	}
	if string(glue.Content) != "export function greet() {}\n" {
		t.Fatal("glue must be emitted verbatim")
	}
	for _, want := range []string{`import * as shim from "./` + shim.Name + `"`, `export * from "./` + glue.Name + `"`, `Object.freeze(["greet", "memory"])`, "export default function init()"} {
		if !strings.Contains(set.ModuleSource, want) {
			t.Fatalf("module source lacks %q:\n%s", want, set.ModuleSource)
		}
	}
}

func TestEmitBindgenWithoutShim(t *testing.T) {
	cfg := config.Config{Bindgen: true, Target: config.TargetNode}.Normalized()
	arts := []artifact.Artifact{
		binary(wasmBytes),
		artifact.New(artifact.GlueSource, "my-crate", ".js", []byte("// glue")),
	}
	set, err := Emit(arts, cfg, "my-crate")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for _, want := range []string{`{ ["./my_crate"]: glue, ...imports }`, `import("node:fs/promises")`} {
		if !strings.Contains(set.ModuleSource, want) {
			t.Fatalf("module source lacks %q:\n%s", want, set.ModuleSource)
		}
	}
}

func TestEmitCargoWeb(t *testing.T) {
	cfg := config.Config{Mode: config.ModeCargoWeb, Release: true, Name: "[name].[hash:8].wasm"}.Normalized()
	arts := []artifact.Artifact{
		binary(wasmBytes),
		artifact.New(artifact.GlueSource, "demo", ".js", []byte("// cargo-web glue")),
	}
	set, err := Emit(arts, cfg, "demo")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	var bins int
	for _, a := range set.Assets {
		if a.Kind.IsBinary() {
			bins++
		}
	}
	if bins != 1 {
		t.Fatalf("expected exactly one binary asset, got %d", bins)
	}
	want := "demo." + artifact.HashBytes(wasmBytes)[:8] + ".wasm"
	if set.Assets[0].Name != want {
		t.Fatalf("name = %q, want %q", set.Assets[0].Name, want)
	}
	if !strings.Contains(set.ModuleSource, "glue.imports") {
		t.Fatalf("module source:\n%s", set.ModuleSource)
	}
}

func TestEmitErrors(t *testing.T) {
	cfg := config.Default()
	if _, err := Emit(nil, cfg, "demo"); err == nil {
		t.Fatal("expected error without binary")
	}
	two := []artifact.Artifact{binary(wasmBytes), binary(wasmBytes)}
	if _, err := Emit(two, cfg, "demo"); err == nil {
		t.Fatal("expected error with two binaries")
	}
	fixed := config.Config{Name: "out.wasm", Bindgen: true, ESShim: true}.Normalized()
	arts := []artifact.Artifact{
		binary(wasmBytes),
		artifact.New(artifact.GlueSource, "demo", ".js", []byte("a")),
		artifact.New(artifact.ShimSource, "demo", ".js", []byte("b")),
	}
	if _, err := Emit(arts, fixed, "demo"); !errors.Is(err, ErrTemplate) {
		t.Fatalf("colliding names: err = %v", err)
	}
}

func TestPayloadEncoding(t *testing.T) {
	set, err := Emit([]artifact.Artifact{binary(wasmBytes)}, config.Default(), "demo")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	p := Payload{
		Module:       "demo",
		Success:      true,
		Diagnostics:  []diag.Diagnostic{diag.NewWarning(diag.CompilerMessage, "unused").WithSpan(diag.Span{File: "src/lib.rs", Line: 1})},
		Assets:       set.Assets,
		ModuleSource: set.ModuleSource,
	}
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		var buf bytes.Buffer
		if err := p.Encode(&buf, f); err != nil {
			t.Fatalf("%s encode: %v", f, err)
		}
		back, err := DecodePayload(&buf, f)
		if err != nil {
			t.Fatalf("%s decode: %v", f, err)
		}
		if back.Module != "demo" || !back.Success || back.ModuleSource != p.ModuleSource {
			t.Fatalf("%s: unexpected payload %+v", f, back)
		}
		if len(back.Assets) != 1 || !bytes.Equal(back.Assets[0].Content, wasmBytes) || back.Assets[0].Kind != artifact.PrimaryBinary {
			t.Fatalf("%s: assets = %+v", f, back.Assets)
		}
		if len(back.Diagnostics) != 1 || back.Diagnostics[0].Code != diag.CompilerMessage || back.Diagnostics[0].Span.File != "src/lib.rs" {
			t.Fatalf("%s: diagnostics = %+v", f, back.Diagnostics)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPayloadJSONShape(t *testing.T) {
	var buf bytes.Buffer
	if err := (Payload{Module: "demo"}).Encode(&buf, FormatJSON); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"diagnostics": []`) || !strings.Contains(out, `"assets": []`) {
		t.Fatalf("empty lists must encode as []: %s", out)
	}
}

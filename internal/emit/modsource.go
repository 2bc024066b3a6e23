package emit

import (
	"encoding/json"
	"fmt"
	"strings"

	"wasmloader/internal/artifact"
	"wasmloader/internal/config"
)

type moduleInput struct {
	module  string
	mode    config.Mode
	target  config.Target
	binary  string
	glue    string
	shim    string
	exports []string
}

// renderModule writes the ES module the host evaluates in place of the
// Rust source. Its default export init(imports) resolves to the compiled
// unit's exports whatever toolchain produced it.
func renderModule(in moduleInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Generated by wasmloader for %s (%s, %s).\n", jsString(in.module), in.mode, in.target)
	switch {
	case in.shim != "":
		// wasm2es6js instantiates the binary itself.
		fmt.Fprintf(&b, "import * as shim from %s;\n", relImport(in.shim))
		fmt.Fprintf(&b, "export * from %s;\n", relImport(in.glue))
		writeExportList(&b, in.exports)
		b.WriteString("\nlet cached;\n\n")
		b.WriteString("export default function init() {\n")
		b.WriteString("  if (!cached) {\n")
		b.WriteString("    cached = Promise.resolve(shim.booted).then(() => shim);\n")
		b.WriteString("  }\n")
		b.WriteString("  return cached;\n")
		b.WriteString("}\n")
		return b.String()
	case in.glue != "" && in.mode == config.ModeCargoWeb:
		fmt.Fprintf(&b, "import * as glue from %s;\n", relImport(in.glue))
	case in.glue != "":
		fmt.Fprintf(&b, "import * as glue from %s;\n", relImport(in.glue))
		fmt.Fprintf(&b, "export * from %s;\n", relImport(in.glue))
	}
	writeExportList(&b, in.exports)
	fmt.Fprintf(&b, "\nconst wasmUrl = new URL(%s, import.meta.url);\n", relImport(in.binary))
	b.WriteString(loaderFor(in.target))
	b.WriteString("\nlet cached;\n\n")
	b.WriteString("export default function init(imports = {}) {\n")
	b.WriteString("  if (!cached) {\n")
	switch {
	case in.glue != "" && in.mode == config.ModeCargoWeb:
		b.WriteString("    const base = typeof glue.imports === \"object\" ? glue.imports : {};\n")
		b.WriteString("    cached = instantiate(wasmUrl, { ...base, ...imports });\n")
	case in.glue != "":
		fmt.Fprintf(&b, "    cached = instantiate(wasmUrl, { [%s]: glue, ...imports });\n",
			jsString("./"+artifact.SafeName(in.module)))
	default:
		b.WriteString("    cached = instantiate(wasmUrl, imports);\n")
	}
	b.WriteString("  }\n")
	b.WriteString("  return cached;\n")
	b.WriteString("}\n")
	return b.String()
}

const webLoader = `
async function instantiate(url, imports) {
  if (typeof WebAssembly.instantiateStreaming === "function") {
    try {
      const { instance } = await WebAssembly.instantiateStreaming(fetch(url), imports);
      return instance.exports;
    } catch (err) {
      if (!(err instanceof TypeError)) throw err;
    }
  }
  const bytes = await (await fetch(url)).arrayBuffer();
  const { instance } = await WebAssembly.instantiate(bytes, imports);
  return instance.exports;
}
`

const nodeLoader = `
async function instantiate(url, imports) {
  const { readFile } = await import("node:fs/promises");
  const { instance } = await WebAssembly.instantiate(await readFile(url), imports);
  return instance.exports;
}
`

func loaderFor(t config.Target) string {
	if t == config.TargetNode {
		return nodeLoader
	}
	return webLoader
}

func writeExportList(b *strings.Builder, exports []string) {
	if exports == nil {
		return
	}
	quoted := make([]string, len(exports))
	for i, e := range exports {
		quoted[i] = jsString(e)
	}
	fmt.Fprintf(b, "export const wasmExports = Object.freeze([%s]);\n", strings.Join(quoted, ", "))
}

func relImport(name string) string {
	return jsString("./" + name)
}

// jsString quotes s as a JavaScript string literal. JSON string syntax is a
// subset of it.
func jsString(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(data)
}

package project

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"wasmloader/internal/diag"
)

// Manifest is the part of Cargo.toml the loader cares about.
type Manifest struct {
	Path   string
	Root   string
	Config manifestConfig
	// HasLib is true when the manifest declares a [lib] table.
	HasLib bool
	// Virtual is true for workspace-only manifests without [package].
	Virtual bool
}

type manifestConfig struct {
	Package packageConfig `toml:"package"`
	Lib     libConfig     `toml:"lib"`
}

type packageConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type libConfig struct {
	Name      string   `toml:"name"`
	CrateType []string `toml:"crate-type"`
}

// LoadManifest parses the Cargo.toml at path. Keys the loader does not use
// are ignored.
func LoadManifest(path string) (*Manifest, error) {
	var cfg manifestConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	m := &Manifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
		HasLib: meta.IsDefined("lib"),
	}
	if !meta.IsDefined("package") {
		if !meta.IsDefined("workspace") {
			return nil, fmt.Errorf("%s: missing [package]", path)
		}
		m.Virtual = true
		return m, nil
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return nil, fmt.Errorf("%s: missing [package].name", path)
	}
	return m, nil
}

// PackageName returns [package].name, or the root directory name for a
// virtual manifest.
func (m *Manifest) PackageName() string {
	if m == nil {
		return ""
	}
	if name := strings.TrimSpace(m.Config.Package.Name); name != "" {
		return name
	}
	return filepath.Base(m.Root)
}

// CrateName is the file stem cargo uses for the library artifact.
func (m *Manifest) CrateName() string {
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m.Config.Lib.Name)
	if name == "" {
		name = m.PackageName()
	}
	return strings.ReplaceAll(name, "-", "_")
}

// IsCdylib reports whether [lib] asks for a C-compatible dynamic library,
// which is what cargo emits as a .wasm file for wasm32-unknown-unknown.
func (m *Manifest) IsCdylib() bool {
	return m != nil && slices.Contains(m.Config.Lib.CrateType, "cdylib")
}

// Diagnostics reports manifest problems that do not stop the build.
func (m *Manifest) Diagnostics() []diag.Diagnostic {
	if m == nil || !m.HasLib || m.IsCdylib() {
		return nil
	}
	d := diag.NewWarning(diag.ManifestWarning,
		`[lib] crate-type does not include "cdylib"; cargo may not produce a .wasm library`)
	return []diag.Diagnostic{d.WithSpan(diag.Span{File: m.Path})}
}

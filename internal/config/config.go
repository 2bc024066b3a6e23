// Package config defines the immutable per-request build configuration.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Mode selects the primary toolchain.
type Mode string

const (
	// ModeStandard builds with cargo for wasm32-unknown-unknown.
	ModeStandard Mode = "standard"
	// ModeCargoWeb builds with the cargo-web toolchain, which emits its own glue.
	ModeCargoWeb Mode = "cargo-web"
)

// Target selects the environment the generated JavaScript runs in.
type Target string

const (
	TargetWeb  Target = "web"
	TargetNode Target = "node"
)

// DefaultName is the default output name template.
const DefaultName = "[name].[hash:8].wasm"

// Config is one compilation request's configuration. Treat it as immutable:
// the pipeline copies Args before handing them to a driver.
type Config struct {
	Mode    Mode     `toml:"mode" yaml:"mode" json:"mode,omitempty"`
	Release bool     `toml:"release" yaml:"release" json:"release,omitempty"`
	GC      bool     `toml:"gc" yaml:"gc" json:"gc,omitempty"`
	Bindgen bool     `toml:"bindgen" yaml:"bindgen" json:"bindgen,omitempty"`
	ESShim  bool     `toml:"es_shim" yaml:"es_shim" json:"es_shim,omitempty"`
	Name    string   `toml:"name" yaml:"name" json:"name,omitempty"`
	Args    []string `toml:"args" yaml:"args" json:"args,omitempty"`
	Target  Target   `toml:"target" yaml:"target" json:"target,omitempty"`
	// ValidateBinary inspects the compiled binary with wazero before the
	// post-passes run.
	ValidateBinary bool `toml:"validate" yaml:"validate" json:"validate,omitempty"`
	// Boundary stops the manifest search; empty means the filesystem root.
	Boundary string `toml:"boundary" yaml:"boundary" json:"boundary,omitempty"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Mode:           ModeStandard,
		Name:           DefaultName,
		Target:         TargetWeb,
		ValidateBinary: true,
	}
}

// Profile returns the cargo profile directory name.
func (c Config) Profile() string {
	if c.Release {
		return "release"
	}
	return "debug"
}

// PostPasses reports whether any standard-mode artifact stage is enabled.
func (c Config) PostPasses() bool {
	return c.GC || c.Bindgen || c.ESShim
}

// Normalized fills zero fields with defaults and returns a copy that shares
// no slices with c.
func (c Config) Normalized() Config {
	if c.Mode == "" {
		c.Mode = ModeStandard
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultName
	}
	if c.Target == "" {
		c.Target = TargetWeb
	}
	c.Args = slices.Clone(c.Args)
	return c
}

var (
	// ErrExclusiveModes reports cargo-web combined with standard post-passes.
	ErrExclusiveModes = errors.New("cargo-web mode cannot be combined with gc, bindgen or es-shim")
	// ErrShimWithoutBindgen reports an ES shim request without bindings generation.
	ErrShimWithoutBindgen = errors.New("es-shim requires bindgen")
)

// Validate checks the invariants of a normalized configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeStandard, ModeCargoWeb:
	default:
		return fmt.Errorf("unsupported mode %q (supported: standard, cargo-web)", c.Mode)
	}
	switch c.Target {
	case TargetWeb, TargetNode:
	default:
		return fmt.Errorf("unsupported target %q (supported: web, node)", c.Target)
	}
	if c.Mode == ModeCargoWeb && c.PostPasses() {
		return ErrExclusiveModes
	}
	if c.ESShim && !c.Bindgen {
		return ErrShimWithoutBindgen
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("output name template is empty")
	}
	if err := CheckName(c.Name); err != nil {
		return fmt.Errorf("name %q: %w", c.Name, err)
	}
	return nil
}

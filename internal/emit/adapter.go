// Package emit maps final build artifacts onto named assets and a synthetic
// ES module. It performs no I/O.
package emit

import (
	"fmt"
	"path/filepath"

	"wasmloader/internal/artifact"
	"wasmloader/internal/config"
)

// Asset is one file handed to the host.
type Asset struct {
	// Name is the expanded template, slash-separated.
	Name    string        `json:"name" msgpack:"name"`
	Kind    artifact.Kind `json:"kind" msgpack:"kind"`
	Content []byte        `json:"content" msgpack:"content"`
	// Path is Name in host path syntax, relative to the output directory.
	Path string `json:"path" msgpack:"path"`
}

// Set is the result of Emit. Assets[0] is always the binary.
type Set struct {
	Assets       []Asset
	ModuleSource string
}

// Asset returns the first asset of kind k.
func (s Set) Asset(k artifact.Kind) (Asset, bool) {
	for _, a := range s.Assets {
		if a.Kind == k {
			return a, true
		}
	}
	return Asset{}, false
}

type options struct {
	exports []string
}

// Option customizes Emit.
type Option func(*options)

// WithExports lists the binary's export names in the module source.
func WithExports(names []string) Option {
	return func(o *options) { o.exports = names }
}

// Emit names every artifact with cfg.Name and renders the module source.
// artifacts must hold exactly one binary-class artifact.
func Emit(artifacts []artifact.Artifact, cfg config.Config, module string, opts ...Option) (Set, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.Normalized()

	var (
		bin     *artifact.Artifact
		sources []artifact.Artifact
	)
	for i := range artifacts {
		a := artifacts[i]
		switch {
		case a.Kind.IsBinary():
			if bin != nil {
				return Set{}, fmt.Errorf("emit: more than one binary artifact")
			}
			bin = &artifacts[i]
		case a.Kind == artifact.GlueSource || a.Kind == artifact.ShimSource:
			sources = append(sources, a)
		default:
			return Set{}, fmt.Errorf("emit: unsupported artifact kind %s", a.Kind)
		}
	}
	if bin == nil {
		return Set{}, fmt.Errorf("emit: no binary artifact")
	}

	binName, err := Expand(cfg.Name, module, bin.Hash(), extOr(bin.Ext, ".wasm"))
	if err != nil {
		return Set{}, err
	}
	set := Set{Assets: []Asset{newAsset(binName, *bin)}}
	seen := map[string]artifact.Kind{binName: bin.Kind}
	srcTmpl := sourceTemplate(cfg.Name)
	for _, src := range sources {
		name, err := Expand(srcTmpl, module+suffix(src.Kind), src.Hash(), extOr(src.Ext, ".js"))
		if err != nil {
			return Set{}, err
		}
		if prev, dup := seen[name]; dup {
			return Set{}, fmt.Errorf("%w: %s and %s both expand to %q", ErrTemplate, prev, src.Kind, name)
		}
		seen[name] = src.Kind
		set.Assets = append(set.Assets, newAsset(name, src))
	}

	set.ModuleSource = renderModule(moduleInput{
		module:  module,
		mode:    cfg.Mode,
		target:  cfg.Target,
		binary:  set.Assets[0].Name,
		glue:    nameOf(set, artifact.GlueSource),
		shim:    nameOf(set, artifact.ShimSource),
		exports: o.exports,
	})
	return set, nil
}

func newAsset(name string, a artifact.Artifact) Asset {
	return Asset{
		Name:    name,
		Kind:    a.Kind,
		Content: a.Clone().Data,
		Path:    filepath.FromSlash(name),
	}
}

func nameOf(s Set, k artifact.Kind) string {
	if a, ok := s.Asset(k); ok {
		return a.Name
	}
	return ""
}

func suffix(k artifact.Kind) string {
	if k == artifact.ShimSource {
		return ".shim"
	}
	return ".glue"
}

func extOr(ext, def string) string {
	if ext == "" {
		return def
	}
	return ext
}

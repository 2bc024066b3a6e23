// Package wasminspect validates compiled modules and lists their interface
// without instantiating them.
package wasminspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"wasmloader/internal/logging"
)

// ErrInvalidBinary is returned for bytes that are not a valid core module.
var ErrInvalidBinary = errors.New("invalid wasm binary")

var magic = []byte{0x00, 0x61, 0x73, 0x6d}

// ExportKind classifies an export.
type ExportKind string

const (
	KindFunction ExportKind = "function"
	KindMemory   ExportKind = "memory"
)

type Export struct {
	Name string     `json:"name" msgpack:"name"`
	Kind ExportKind `json:"kind" msgpack:"kind"`
}

type Import struct {
	Module string     `json:"module" msgpack:"module"`
	Name   string     `json:"name" msgpack:"name"`
	Kind   ExportKind `json:"kind" msgpack:"kind"`
}

// Info describes a module's interface. Exports and Imports are sorted.
type Info struct {
	Exports []Export `json:"exports" msgpack:"exports"`
	Imports []Import `json:"imports,omitempty" msgpack:"imports,omitempty"`
}

// ExportNames returns the export names in order.
func (i Info) ExportNames() []string {
	names := make([]string, 0, len(i.Exports))
	for _, e := range i.Exports {
		names = append(names, e.Name)
	}
	return names
}

// Inspect compiles data with the wazero interpreter and reports its
// interface. Nothing is instantiated, so no import needs to be satisfied.
func Inspect(ctx context.Context, data []byte) (Info, error) {
	if !bytes.HasPrefix(data, magic) {
		return Info{}, fmt.Errorf("%w: missing \\0asm header", ErrInvalidBinary)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer func() { _ = rt.Close(ctx) }()

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidBinary, err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	var info Info
	for name := range compiled.ExportedFunctions() {
		info.Exports = append(info.Exports, Export{Name: name, Kind: KindFunction})
	}
	for name := range compiled.ExportedMemories() {
		info.Exports = append(info.Exports, Export{Name: name, Kind: KindMemory})
	}
	for _, fn := range compiled.ImportedFunctions() {
		module, name, _ := fn.Import()
		info.Imports = append(info.Imports, Import{Module: module, Name: name, Kind: KindFunction})
	}
	for _, mem := range compiled.ImportedMemories() {
		module, name, _ := mem.Import()
		info.Imports = append(info.Imports, Import{Module: module, Name: name, Kind: KindMemory})
	}
	sort.Slice(info.Exports, func(a, b int) bool { return info.Exports[a].Name < info.Exports[b].Name })
	sort.Slice(info.Imports, func(a, b int) bool {
		if info.Imports[a].Module != info.Imports[b].Module {
			return info.Imports[a].Module < info.Imports[b].Module
		}
		return info.Imports[a].Name < info.Imports[b].Name
	})
	logging.L().Debug("inspected wasm module",
		zap.Int("bytes", len(data)),
		zap.Int("exports", len(info.Exports)),
		zap.Int("imports", len(info.Imports)),
	)
	return info, nil
}

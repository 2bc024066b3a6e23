package wasminspect

import (
	"context"
	"errors"
	"slices"
	"testing"
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// runModule exports a no-op function "run" and a one-page "memory".
var runModule = slices.Concat(header,
	[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
	[]byte{0x03, 0x02, 0x01, 0x00},
	[]byte{0x05, 0x03, 0x01, 0x00, 0x01},
	[]byte{0x07, 0x10, 0x02,
		0x03, 'r', 'u', 'n', 0x00, 0x00,
		0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00},
	[]byte{0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b},
)

// importModule imports env.log as a ()->() function.
var importModule = slices.Concat(header,
	[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
	[]byte{0x02, 0x0b, 0x01, 0x03, 'e', 'n', 'v', 0x03, 'l', 'o', 'g', 0x00, 0x00},
)

func TestInspectExports(t *testing.T) {
	info, err := Inspect(context.Background(), runModule)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	want := []Export{{Name: "memory", Kind: KindMemory}, {Name: "run", Kind: KindFunction}}
	if !slices.Equal(info.Exports, want) {
		t.Fatalf("exports = %+v", info.Exports)
	}
	if !slices.Equal(info.ExportNames(), []string{"memory", "run"}) {
		t.Fatalf("names = %v", info.ExportNames())
	}
}

func TestInspectImports(t *testing.T) {
	info, err := Inspect(context.Background(), importModule)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(info.Imports) != 1 || info.Imports[0] != (Import{Module: "env", Name: "log", Kind: KindFunction}) {
		t.Fatalf("imports = %+v", info.Imports)
	}
	if len(info.Exports) != 0 {
		t.Fatalf("exports = %+v", info.Exports)
	}
}

func TestInspectInvalid(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"not wasm":  []byte("// js glue"),
		"truncated": slices.Concat(header, []byte{0x01, 0x04, 0x01}),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Inspect(context.Background(), data); !errors.Is(err, ErrInvalidBinary) {
				t.Fatalf("Inspect = %v, want ErrInvalidBinary", err)
			}
		})
	}
}

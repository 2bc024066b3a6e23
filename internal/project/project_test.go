package project

import (
	"os"
	"path/filepath"
	"testing"

	"wasmloader/internal/diag"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFindRootAscends(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[package]\nname = \"demo\"\n")
	src := filepath.Join(root, "src", "nested", "lib.rs")
	writeFile(t, src, "")

	got, ok, err := FindRoot(src, "")
	if err != nil || !ok {
		t.Fatalf("FindRoot = %q,%v,%v", got, ok, err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Fatalf("FindRoot = %q, want %q", got, want)
	}
}

func TestFindRootNearestWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[workspace]\n")
	inner := filepath.Join(root, "crates", "inner")
	writeFile(t, filepath.Join(inner, "Cargo.toml"), "[package]\nname = \"inner\"\n")

	got, ok, err := FindRoot(filepath.Join(inner, "src", "lib.rs"), "")
	if err != nil || !ok || got != inner {
		t.Fatalf("FindRoot = %q,%v,%v, want %q", got, ok, err, inner)
	}
}

func TestFindRootBoundary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[package]\nname = \"outer\"\n")
	boundary := filepath.Join(root, "pkg")
	src := filepath.Join(boundary, "src", "lib.rs")
	writeFile(t, src, "")

	if _, ok, err := FindRoot(src, boundary); err != nil || ok {
		t.Fatalf("search must stop at boundary, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := FindRoot(root, boundary); err != nil || ok {
		t.Fatalf("start outside boundary must find nothing, got ok=%v err=%v", ok, err)
	}
	writeFile(t, filepath.Join(boundary, "Cargo.toml"), "[package]\nname = \"pkg\"\n")
	got, ok, err := FindRoot(src, boundary)
	if err != nil || !ok || got != boundary {
		t.Fatalf("FindRoot = %q,%v,%v, want boundary itself", got, ok, err)
	}
}

func TestLoadManifest(t *testing.T) {
	cases := []struct {
		name      string
		data      string
		wantName  string
		wantCrate string
		wantWarn  bool
		wantErr   bool
	}{
		{
			name:      "cdylib",
			data:      "[package]\nname = \"my-crate\"\nversion = \"0.1.0\"\n\n[lib]\ncrate-type = [\"cdylib\"]\n\n[dependencies]\nwasm-bindgen = \"0.2\"\n",
			wantName:  "my-crate",
			wantCrate: "my_crate",
		},
		{
			name:      "lib without cdylib",
			data:      "[package]\nname = \"plain\"\n\n[lib]\ncrate-type = [\"rlib\"]\n",
			wantName:  "plain",
			wantCrate: "plain",
			wantWarn:  true,
		},
		{
			name:      "lib name override",
			data:      "[package]\nname = \"pkg\"\n\n[lib]\nname = \"core-lib\"\ncrate-type = [\"cdylib\", \"rlib\"]\n",
			wantName:  "pkg",
			wantCrate: "core_lib",
		},
		{name: "missing package", data: "[dependencies]\n", wantErr: true},
		{name: "missing name", data: "[package]\nversion = \"1.0.0\"\n", wantErr: true},
		{name: "broken toml", data: "[package\n", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Cargo.toml")
			writeFile(t, path, tc.data)
			m, err := LoadManifest(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadManifest: %v", err)
			}
			if m.PackageName() != tc.wantName || m.CrateName() != tc.wantCrate {
				t.Fatalf("names = %q/%q, want %q/%q", m.PackageName(), m.CrateName(), tc.wantName, tc.wantCrate)
			}
			ds := m.Diagnostics()
			if tc.wantWarn {
				if len(ds) != 1 || ds[0].Severity != diag.SevWarning || ds[0].Code != diag.ManifestWarning {
					t.Fatalf("expected one manifest warning, got %+v", ds)
				}
			} else if len(ds) != 0 {
				t.Fatalf("unexpected diagnostics %+v", ds)
			}
		})
	}
}

func TestLoadVirtualManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws-root")
	path := filepath.Join(dir, "Cargo.toml")
	writeFile(t, path, "[workspace]\nmembers = [\"a\"]\n")
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if !m.Virtual || m.PackageName() != "ws-root" || m.CrateName() != "ws_root" {
		t.Fatalf("unexpected manifest %+v", m)
	}
}
